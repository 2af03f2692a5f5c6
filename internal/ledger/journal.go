package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/zeebo/blake3"

	"ticket-ledger/internal/models"
)

const genesisHash = "genesis"

// hashEntry computes BLAKE3(prevHash || JCS(entry without hash)).
func hashEntry(e models.Entry) (string, error) {
	e.Hash = ""
	canon, err := canonicalJSON(e)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, len(e.PrevHash)+len(canon))
	buf = append(buf, e.PrevHash...)
	buf = append(buf, canon...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize: %w", err)
	}
	return canon, nil
}

// VerifyChain checks sequence numbering and hash links of a journal that
// starts at seq 1.
func VerifyChain(entries []models.Entry) error {
	prev := genesisHash
	for i, e := range entries {
		if e.Seq != uint64(i)+1 {
			return fmt.Errorf("entry %d: expected seq %d: %w", e.Seq, i+1, ErrCorruptJournal)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("entry %d: broken link to previous entry: %w", e.Seq, ErrCorruptJournal)
		}
		h, err := hashEntry(e)
		if err != nil {
			return fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		if h != e.Hash {
			return fmt.Errorf("entry %d: hash mismatch: %w", e.Seq, ErrCorruptJournal)
		}
		prev = e.Hash
	}
	return nil
}

// Entries returns up to limit journal entries with seq >= from. A limit of 0
// or less returns everything.
func (l *Ledger) Entries(from uint64, limit int) []models.Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if from == 0 {
		from = 1
	}
	if from > uint64(len(l.journal)) {
		return []models.Entry{}
	}
	out := l.journal[from-1:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]models.Entry{}, out...)
}

// Head returns the last committed sequence number and hash.
func (l *Ledger) Head() (uint64, string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.journal) == 0 {
		return 0, genesisHash
	}
	last := l.journal[len(l.journal)-1]
	return last.Seq, last.Hash
}
