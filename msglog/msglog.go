// Package msglog is the durable, append-only store of chat messages.
// Records are length-prefixed JSON, written back-to-back in arrival order
// to a single file with no header; a truncated final record is discarded
// on load.
package msglog

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"sync"

	"relaychat/models"
)

// maxRecordSize guards the loader against a garbage length prefix.
const maxRecordSize = 64 << 20

type Log struct {
	mu      sync.Mutex
	f       *os.File
	records []models.ChatMessage
}

// Open reads every intact record from path into memory and prepares the
// file for appending. A partial trailing record is dropped and the file
// trimmed back to the last intact record, so later appends start on a
// record boundary. A missing file is an empty log.
func Open(path string) (*Log, error) {
	records, validSize, err := load(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(validSize); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(validSize, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	return &Log{f: f, records: records}, nil
}

func load(path string) ([]models.ChatMessage, int64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var records []models.ChatMessage
	var offset int64

	for {
		var length uint32
		if err := binary.Read(f, binary.BigEndian, &length); err != nil {
			// EOF here is a clean end; anything else is a partial prefix.
			break
		}
		if length == 0 || length > maxRecordSize {
			log.Printf("msglog: bad record length %d at offset %d, discarding tail", length, offset)
			break
		}

		buf := make([]byte, length)
		if _, err := io.ReadFull(f, buf); err != nil {
			log.Printf("msglog: truncated record at offset %d, discarding tail", offset)
			break
		}

		var rec models.ChatMessage
		if err := json.Unmarshal(buf, &rec); err != nil {
			log.Printf("msglog: malformed record at offset %d, discarding tail: %v", offset, err)
			break
		}

		records = append(records, rec)
		offset += 4 + int64(length)
	}

	return records, offset, nil
}

// Append writes one record durably before returning; a crash after Append
// returns nil never loses the record.
func (l *Log) Append(rec models.ChatMessage) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := binary.Write(l.f, binary.BigEndian, uint32(len(buf))); err != nil {
		return err
	}
	if _, err := l.f.Write(buf); err != nil {
		return err
	}
	if err := l.f.Sync(); err != nil {
		return err
	}

	l.records = append(l.records, rec)
	return nil
}

// All returns every record in append order.
func (l *Log) All() []models.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ChatMessage, len(l.records))
	copy(out, l.records)
	return out
}

// Len reports the number of records in the log.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// QueryRange returns the closed sub-range of records between the first
// record whose server time is >= from and the first record at or after it
// whose server time is >= to. Malformed bounds and a missing lower bound
// both yield an empty result.
//
// Server times are not strictly increasing, so if no record at or after
// the lower position reaches to, the result is empty even when qualifying
// records exist later in the log. That is the documented behavior, kept
// as-is.
func (l *Log) QueryRange(from, to string) []models.ChatMessage {
	if _, err := models.ParseTime(from); err != nil {
		return nil
	}
	if _, err := models.ParseTime(to); err != nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < len(l.records); i++ {
		if l.records[i].ServerTime >= from {
			for u := i; u < len(l.records); u++ {
				if l.records[u].ServerTime >= to {
					out := make([]models.ChatMessage, u-i+1)
					copy(out, l.records[i:u+1])
					return out
				}
			}
		}
	}

	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
