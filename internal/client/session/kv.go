package session

import (
	"encoding/json"
	"os"
	"sync"
)

// KV is the durable key/value port behind the session store. Implementations
// must tolerate absent keys; nothing here returns errors on reads.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string)
}

// FileKV is a KV backed by a single JSON file, the client-side counterpart
// of browser-local storage.
type FileKV struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// NewFileKV opens (or lazily creates) the file at path.
func NewFileKV(path string) (*FileKV, error) {
	kv := &FileKV{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kv, nil
		}
		return nil, err
	}
	// A corrupt file is treated as empty; the session store degrades to
	// "no session" and the next Set rewrites it.
	if err := json.Unmarshal(raw, &kv.data); err != nil {
		kv.data = make(map[string]string)
	}
	return kv, nil
}

func (kv *FileKV) Get(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *FileKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return kv.flushLocked()
}

func (kv *FileKV) Delete(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.data[key]; !ok {
		return
	}
	delete(kv.data, key)
	_ = kv.flushLocked()
}

func (kv *FileKV) flushLocked() error {
	raw, err := json.Marshal(kv.data)
	if err != nil {
		return err
	}
	return os.WriteFile(kv.path, raw, 0o600)
}

// MemKV is an in-memory KV for tests and throwaway sessions.
type MemKV struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string]string)}
}

func (kv *MemKV) Get(key string) (string, bool) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.data[key]
	return v, ok
}

func (kv *MemKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	return nil
}

func (kv *MemKV) Delete(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
}
