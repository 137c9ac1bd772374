package ledger

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

func encodeHash(sum [32]byte) string {
	return "0x" + hex.EncodeToString(sum[:])
}

// txHash commits to the transaction content and its submission nonce so two
// identical submissions still get distinct hashes.
func txHash(tx Transaction, nonce uint64) string {
	h := blake3.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	_, _ = h.Write(buf[:])
	for _, s := range []string{tx.Sender, tx.Recipient, string(tx.Contract), string(tx.Payload.Kind)} {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write(tx.Payload.Data)

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return encodeHash(sum)
}

func blockHash(b Block) string {
	h := blake3.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], b.Height)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(b.ParentHash))
	binary.BigEndian.PutUint64(buf[:], uint64(b.ProducedAt.UnixNano()))
	_, _ = h.Write(buf[:])
	for _, tx := range b.Transactions {
		_, _ = h.Write([]byte(tx.Hash))
	}

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return encodeHash(sum)
}
