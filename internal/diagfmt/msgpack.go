package diagfmt

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"astrols/internal/diag"
)

// PayloadVersion is bumped whenever diag.Record changes shape.
const PayloadVersion uint16 = 1

// Payload is the msgpack form of a diagnostic run.
type Payload struct {
	Version uint16        `msgpack:"version"`
	Records []diag.Record `msgpack:"records"`
}

// Msgpack writes the records of bag as a single Payload.
func Msgpack(w io.Writer, bag *diag.Bag) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(Payload{Version: PayloadVersion, Records: bag.Items()})
}

// ReadMsgpack decodes a Payload written by Msgpack.
func ReadMsgpack(r io.Reader) (*diag.Bag, error) {
	var p Payload
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	if p.Version != PayloadVersion {
		return nil, fmt.Errorf("msgpack payload version %d, want %d", p.Version, PayloadVersion)
	}
	bag := diag.NewBag(0)
	for _, rec := range p.Records {
		bag.Add(rec)
	}
	return bag, nil
}
