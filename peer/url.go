package peer

import (
	"net/url"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidPeerURL is wrapped with the specific defect by ValidateURL.
var ErrInvalidPeerURL = errors.New("invalid peer url")

// ValidateURL checks that u has a host, a non-zero port, and a user
// component that parses as a UUID — the three requirements a Peer's URL
// must satisfy (scheme://<uuid>@<host>:<port>/).
func ValidateURL(u *url.URL) (peerUUID string, err error) {
	if u.Hostname() == "" {
		return "", errors.Wrap(ErrInvalidPeerURL, "missing host")
	}
	if u.Port() == "" || u.Port() == "0" {
		return "", errors.Wrap(ErrInvalidPeerURL, "missing or zero port")
	}
	if u.User == nil || u.User.Username() == "" {
		return "", errors.Wrap(ErrInvalidPeerURL, "missing user component")
	}
	id, err := uuid.Parse(u.User.Username())
	if err != nil {
		return "", errors.Wrap(ErrInvalidPeerURL, "user component is not a uuid")
	}
	return id.String(), nil
}

// HasIncomingPort reports whether u advertises a non-zero port, the
// precondition for a remote to dial back.
func HasIncomingPort(u *url.URL) bool {
	return u.Port() != "" && u.Port() != "0"
}
