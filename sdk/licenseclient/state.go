package licenseclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stateSealContext = "flaco-license-state-v1"

// stateFile reads and writes the state record. Each record is sealed with
// an HMAC keyed to this machine; a record whose seal does not match keeps
// its identity but loses its cached verification.
type stateFile struct {
	path string
	key  []byte
}

func newStateFile(path, machine string) *stateFile {
	sum := sha256.Sum256([]byte(stateSealContext + "|" + machine))
	return &stateFile{path: path, key: sum[:]}
}

func (f *stateFile) load() (*State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read license state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode license state %s: %w", f.path, err)
	}
	if !hmac.Equal([]byte(st.Signature), []byte(f.sign(&st))) {
		st.clearVerification()
	}
	st.Signature = ""
	return &st, nil
}

// save replaces the state file atomically.
func (f *stateFile) save(st *State) error {
	sealed := *st
	sealed.Signature = f.sign(st)
	data, err := json.MarshalIndent(&sealed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode license state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".license-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace license state: %w", err)
	}
	return nil
}

func (f *stateFile) sign(st *State) string {
	data := strings.Join([]string{
		st.DeviceID,
		st.Email,
		st.LicenseKey,
		st.Tier,
		st.ExpiresAt.UTC().Format(time.RFC3339Nano),
		st.LastVerifiedAt.UTC().Format(time.RFC3339Nano),
		st.Receipt,
	}, "|")

	h := hmac.New(sha256.New, f.key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
