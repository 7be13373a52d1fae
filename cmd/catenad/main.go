// Command catenad runs the gossip/peer core as a standalone process: it
// takes its protocol parameters from catena.Defaults (no flag changes
// them), reads port, uuid, genesis, passive mode and seed peers from
// flags, builds a reference in-memory node, and serves incoming peer
// channels — the teacher's habit of a thin
// cmd/ wrapper around a ProtocolManager-shaped core.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/hilalh/catena/catena"
	"github.com/hilalh/catena/catnodetest"
	"github.com/hilalh/catena/gossip"
	"github.com/hilalh/catena/peerconn"
	"github.com/hilalh/catena/server"
)

var (
	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "listen port for incoming peer channels",
		Value: 8765,
	}
	uuidFlag = cli.StringFlag{
		Name:  "uuid",
		Usage: "this node's UUID, advertised to peers",
	}
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "genesis hash this node's ledger accepts",
		Value: "genesis",
	}
	passiveFlag = cli.BoolFlag{
		Name:  "passive",
		Usage: "disable outgoing connections (this node only accepts incoming channels)",
	}
	peersFlag = cli.StringSliceFlag{
		Name:  "peer",
		Usage: "seed peer URL (scheme://uuid@host:port/); may be repeated",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "catenad"
	app.Usage = "gossip and peer-management core"
	app.Flags = []cli.Flag{portFlag, uuidFlag, genesisFlag, passiveFlag, peersFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Crit("catenad exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	logger := log.New()

	nodeUUID := c.String(uuidFlag.Name)
	if nodeUUID == "" {
		return fmt.Errorf("--%s is required", uuidFlag.Name)
	}
	port := c.Int(portFlag.Name)

	params := catena.Defaults()
	codec := params.Codec()
	connParams := params.ConnectionParams()
	peerCfg := params.PeerConfig()

	ledger := catnodetest.NewFakeLedger(gossip.Hash(c.String(genesisFlag.Name)))

	var dialer peerconn.Dialer
	if !c.Bool(passiveFlag.Name) {
		dialer = &peerconn.WebsocketDialer{
			Codec:     codec,
			Params:    connParams,
			LocalUUID: nodeUUID,
			LocalPort: port,
			Logger:    logger,
		}
	}

	node := newRuntimeNode(nodeUUID, port, ledger, codec, connParams, peerCfg, dialer, logger)

	srv := server.New(port, node, codec, connParams, logger)

	for _, seed := range c.StringSlice(peersFlag.Name) {
		seedURL, err := parseSeedURL(seed)
		if err != nil {
			logger.Warn("ignoring malformed seed peer", "peer", seed, "err", err)
			continue
		}
		node.AddPeerURL(seedURL)
	}

	go advanceLoop(node)

	logger.Info("catenad listening", "port", port, "uuid", nodeUUID)
	return srv.ListenAndServe()
}

func advanceLoop(node *runtimeNode) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		node.advanceAll()
	}
}
