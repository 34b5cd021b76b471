package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/casedock/authgate/session"
)

// ErrMirrorUnavailable wraps transport or filesystem failures. The cached
// session may still exist; the caller decides whether to retry or continue
// without it.
var ErrMirrorUnavailable = errors.New("mirror unavailable")

// ErrMirrorCorrupt marks a stored document that cannot be decoded or carries
// an unsupported schema version. Callers should clear the mirror and fall
// back to the provider.
var ErrMirrorCorrupt = errors.New("mirror document corrupt")

// Store persists at most one session. Load returns (nil, nil) when nothing
// is stored; that is a miss, not a failure.
type Store interface {
	Load(ctx context.Context) (*session.Session, error)
	Save(ctx context.Context, sess *session.Session) error
	Clear(ctx context.Context) error
}

const documentVersion = 1

type document struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Session *session.Session `json:"session"`
}

func encodeDocument(sess *session.Session) ([]byte, error) {
	doc := document{
		Version: documentVersion,
		SavedAt: time.Now().UTC(),
		Session: sess,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMirrorCorrupt, err)
	}
	return data, nil
}

func decodeDocument(data []byte) (*session.Session, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMirrorCorrupt, err)
	}
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrMirrorCorrupt, doc.Version)
	}
	return doc.Session, nil
}
