package api

import (
	"encoding/hex"
	"fmt"

	"github.com/jmerrifield20/commitcore/internal/digest"
)

// batchRequest is the body shared by endpoints operating on a transaction batch.
// Each transaction is the hex encoding of its canonical bytes.
type batchRequest struct {
	Transactions []string `json:"transactions"`
}

func (r batchRequest) decode() ([]digest.Hashable, error) {
	txs := make([]digest.Hashable, len(r.Transactions))
	for i, s := range r.Transactions {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("transaction %d is not valid hex", i)
		}
		txs[i] = digest.Bytes(b)
	}
	return txs, nil
}
