package gossip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

// Codec (de)serializes Gossip values to and from the self-describing wire
// object described by the protocol: a map keyed by ActionKey selecting the
// variant, plus variant-specific fields. Numeric fields are decoded
// tolerantly — both fixed-width integers and arbitrary-precision
// encodings are accepted, since the wire representation is not
// normalized across platforms.
type Codec struct {
	ActionKey      string
	MaxExtraBlocks int
}

// NewCodec builds a Codec. An empty actionKey defaults to "t".
func NewCodec(actionKey string, maxExtraBlocks int) *Codec {
	if actionKey == "" {
		actionKey = "t"
	}
	return &Codec{ActionKey: actionKey, MaxExtraBlocks: maxExtraBlocks}
}

// Marshal renders a Frame as the textual `[counter, object]` pair.
func (c *Codec) Marshal(f Frame) ([]byte, error) {
	obj, err := c.ToObject(f.Gossip)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]interface{}{f.Counter, obj})
}

// Unmarshal parses a `[counter, object]` pair into a Frame.
func (c *Codec) Unmarshal(data []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return Frame{}, errDeserializationFailed("frame", err)
	}
	if len(raw) != 2 {
		return Frame{}, errDeserializationFailed("frame", fmt.Errorf("expected [counter, object] pair, got %d elements", len(raw)))
	}

	counterNum, err := decodeNumber(raw[0])
	if err != nil {
		return Frame{}, errDeserializationFailed("counter", err)
	}
	counter, err := numberToUint64(counterNum)
	if err != nil {
		return Frame{}, errDeserializationFailed("counter", err)
	}

	obj, err := decodeObject(raw[1])
	if err != nil {
		return Frame{}, errDeserializationFailed("object", err)
	}

	g, err := c.FromObject(obj)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Counter: counter, Gossip: g}, nil
}

// ToObject converts a Gossip value into the self-describing wire object.
func (c *Codec) ToObject(g Gossip) (map[string]interface{}, error) {
	obj := map[string]interface{}{c.ActionKey: string(g.Action())}

	switch v := g.(type) {
	case Query, Passive, Forget:
		// no payload beyond the action tag

	case IndexGossip:
		obj["index"] = map[string]interface{}{
			"genesis": string(v.Index.Genesis),
			"highest": string(v.Index.Highest),
			"height":  v.Index.Height,
			"time":    v.Index.Timestamp,
			"peers":   v.Index.Peers,
		}

	case Block:
		obj["block"] = v.Block

	case Transaction:
		obj["tx"] = v.Tx

	case Fetch:
		obj["hash"] = string(v.Hash)
		obj["extra"] = v.Extra

	case Result:
		if c.MaxExtraBlocks >= 0 && len(v.Extra) > c.MaxExtraBlocks {
			return nil, errLimitExceeded(len(v.Extra), c.MaxExtraBlocks)
		}
		extra := make(map[string]interface{}, len(v.Extra))
		for h, b := range v.Extra {
			extra[string(h)] = b
		}
		obj["block"] = v.Block
		obj["extra"] = extra

	case ErrorGossip:
		obj["message"] = v.Message

	default:
		return nil, errDeserializationFailed("action", fmt.Errorf("unsupported gossip type %T", g))
	}
	return obj, nil
}

// FromObject parses the self-describing wire object into a Gossip value.
func (c *Codec) FromObject(obj map[string]interface{}) (Gossip, error) {
	raw, ok := obj[c.ActionKey]
	if !ok {
		return nil, errMissingActionKey(c.ActionKey)
	}
	action, ok := raw.(string)
	if !ok {
		return nil, errDeserializationFailed(c.ActionKey, fmt.Errorf("not a string"))
	}

	switch Action(action) {
	case ActionQuery:
		return Query{}, nil
	case ActionPassive:
		return Passive{}, nil
	case ActionForget:
		return Forget{}, nil
	case ActionIndex:
		return c.parseIndexGossip(obj)
	case ActionBlock:
		b, err := requireMap(obj, "block")
		if err != nil {
			return nil, err
		}
		return Block{Block: b}, nil
	case ActionTransaction:
		tx, err := requireMap(obj, "tx")
		if err != nil {
			return nil, err
		}
		return Transaction{Tx: tx}, nil
	case ActionFetch:
		return c.parseFetch(obj)
	case ActionResult:
		return c.parseResult(obj)
	case ActionError:
		msg, err := requireString(obj, "message")
		if err != nil {
			return nil, err
		}
		return ErrorGossip{Message: msg}, nil
	default:
		return nil, errUnknownAction(action)
	}
}

func (c *Codec) parseIndexGossip(obj map[string]interface{}) (Gossip, error) {
	m, err := requireMap(obj, "index")
	if err != nil {
		return nil, err
	}
	genesis, err := requireString(m, "genesis")
	if err != nil {
		return nil, err
	}
	highest, err := requireString(m, "highest")
	if err != nil {
		return nil, err
	}
	heightNum, err := requireNumber(m, "height")
	if err != nil {
		return nil, err
	}
	height, err := numberToUint64(heightNum)
	if err != nil {
		return nil, errDeserializationFailed("height", err)
	}
	timeNum, err := requireNumber(m, "time")
	if err != nil {
		return nil, err
	}
	ts, err := numberToInt64(timeNum)
	if err != nil {
		return nil, errDeserializationFailed("time", err)
	}
	peersRaw, ok := m["peers"]
	if !ok {
		return nil, errDeserializationFailed("peers", fmt.Errorf("missing"))
	}
	peersArr, ok := peersRaw.([]interface{})
	if !ok {
		return nil, errDeserializationFailed("peers", fmt.Errorf("not an array"))
	}
	peers := make([]string, len(peersArr))
	for i, p := range peersArr {
		s, ok := p.(string)
		if !ok {
			return nil, errDeserializationFailed("peers", fmt.Errorf("element %d not a string", i))
		}
		peers[i] = s
	}
	return IndexGossip{Index: Index{
		Genesis:   Hash(genesis),
		Highest:   Hash(highest),
		Height:    height,
		Timestamp: ts,
		Peers:     peers,
	}}, nil
}

func (c *Codec) parseFetch(obj map[string]interface{}) (Gossip, error) {
	hash, err := requireString(obj, "hash")
	if err != nil {
		return nil, err
	}
	var extra uint32
	if raw, ok := obj["extra"]; ok {
		num, ok := raw.(json.Number)
		if !ok {
			return nil, errDeserializationFailed("extra", fmt.Errorf("not numeric"))
		}
		u, err := numberToUint64(num)
		if err != nil {
			return nil, errDeserializationFailed("extra", err)
		}
		if u > math.MaxUint32 {
			return nil, errDeserializationFailed("extra", fmt.Errorf("overflows uint32"))
		}
		extra = uint32(u)
	}
	return Fetch{Hash: Hash(hash), Extra: extra}, nil
}

func (c *Codec) parseResult(obj map[string]interface{}) (Gossip, error) {
	block, err := requireMap(obj, "block")
	if err != nil {
		return nil, err
	}
	extraRaw, ok := obj["extra"]
	if !ok {
		return nil, errDeserializationFailed("extra", fmt.Errorf("missing"))
	}
	extraMap, ok := extraRaw.(map[string]interface{})
	if !ok {
		return nil, errDeserializationFailed("extra", fmt.Errorf("not an object"))
	}
	if c.MaxExtraBlocks >= 0 && len(extraMap) > c.MaxExtraBlocks {
		return nil, errLimitExceeded(len(extraMap), c.MaxExtraBlocks)
	}
	extra := make(map[Hash]map[string]interface{}, len(extraMap))
	for k, v := range extraMap {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, errDeserializationFailed("extra", fmt.Errorf("entry %q not an object", k))
		}
		extra[Hash(k)] = m
	}
	return Result{Block: block, Extra: extra}, nil
}

func requireMap(obj map[string]interface{}, field string) (map[string]interface{}, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, errDeserializationFailed(field, fmt.Errorf("missing"))
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errDeserializationFailed(field, fmt.Errorf("not an object"))
	}
	return m, nil
}

func requireString(obj map[string]interface{}, field string) (string, error) {
	raw, ok := obj[field]
	if !ok {
		return "", errDeserializationFailed(field, fmt.Errorf("missing"))
	}
	s, ok := raw.(string)
	if !ok {
		return "", errDeserializationFailed(field, fmt.Errorf("not a string"))
	}
	return s, nil
}

func requireNumber(obj map[string]interface{}, field string) (json.Number, error) {
	raw, ok := obj[field]
	if !ok {
		return "", errDeserializationFailed(field, fmt.Errorf("missing"))
	}
	n, ok := raw.(json.Number)
	if !ok {
		return "", errDeserializationFailed(field, fmt.Errorf("not numeric"))
	}
	return n, nil
}

func decodeNumber(raw json.RawMessage) (json.Number, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	return n, nil
}

func decodeObject(raw json.RawMessage) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// numberToUint64 tolerates both fixed-width and arbitrary-precision
// numeric encodings of the same logical value.
func numberToUint64(n json.Number) (uint64, error) {
	if u, err := n.Int64(); err == nil && u >= 0 {
		return uint64(u), nil
	}
	bi, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	if bi.Sign() < 0 || !bi.IsUint64() {
		return 0, fmt.Errorf("value %s does not fit in uint64", n)
	}
	return bi.Uint64(), nil
}

func numberToInt64(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	bi, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	if !bi.IsInt64() {
		return 0, fmt.Errorf("value %s does not fit in int64", n)
	}
	return bi.Int64(), nil
}
