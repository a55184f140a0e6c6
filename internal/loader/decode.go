package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/tally/internal/common"
	"github.com/Veraticus/tally/internal/model"
)

// Decode reads extraction documents. The stream may hold one package object,
// an array of them, or several objects back to back.
func Decode(r io.Reader) ([]*model.RawPackage, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty document", common.ErrMalformedRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var docs []*model.RawPackage
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRecord, err)
		}
		for i, doc := range docs {
			if doc == nil {
				return nil, fmt.Errorf("%w: document %d is null", common.ErrMalformedRecord, i)
			}
		}
		return docs, nil
	}

	var docs []*model.RawPackage
	for {
		var doc model.RawPackage
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", common.ErrMalformedRecord, len(docs), err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// DecodeFile reads extraction documents from path.
func DecodeFile(path string) ([]*model.RawPackage, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	docs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsRune([]byte(" \t\r\n"), rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
