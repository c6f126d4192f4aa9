// ABOUTME: Process-wide handle on the charm KV database that holds saved filters
// ABOUTME: Writes can push to the charm server so other machines see the same presets

package prefs

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
)

var (
	globalClient *Client
	clientOnce   sync.Once
	clientErr    error
)

// kvStore is what presets need from charm's kv.KV. Tests use badger directly.
type kvStore interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Keys() ([][]byte, error)
	Sync() error
}

// Client guards the preset database. Reads share the lock; writes and syncs
// take it exclusively.
type Client struct {
	store  kvStore
	config *Config
	// remote is false for test clients, which have no charm account.
	remote bool
	mu     sync.RWMutex
}

// InitClient opens the shared preset database on first use. autoSync turns on
// pushing after every write even when the config file leaves it off.
func InitClient(autoSync bool) error {
	clientOnce.Do(func() {
		cfg := LoadConfig()
		cfg.AutoSync = cfg.AutoSync || autoSync
		globalClient, clientErr = NewClient(cfg)
	})
	return clientErr
}

// GetClient returns the shared preset database.
func GetClient() (*Client, error) {
	if err := InitClient(false); err != nil {
		return nil, err
	}
	if globalClient == nil {
		return nil, fmt.Errorf("client not initialized")
	}
	return globalClient, nil
}

// NewClient opens the preset database named AppName in charm's data dir.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// kv reads the server from the environment.
	_ = os.Setenv("CHARM_HOST", cfg.Host)

	db, err := kv.OpenWithDefaults(AppName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	c := &Client{
		store:  db,
		config: cfg,
		remote: true,
	}

	if cfg.AutoSync {
		_ = db.Sync()
	}
	return c, nil
}

// Config returns the sync settings in effect.
func (c *Client) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// ID returns the charm account presets sync under.
func (c *Client) ID() (string, error) {
	if !c.remote {
		return "", fmt.Errorf("test client has no charm account")
	}
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("failed to create charm client: %w", err)
	}
	return cc.ID()
}

// Sync pushes local presets and pulls ones saved elsewhere.
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Sync()
}

// Get reads one raw entry.
func (c *Client) Get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Get(key)
}

// Set writes an entry, then pushes it when auto-sync is on. Push errors are
// dropped; the local write stands.
func (c *Client) Set(key, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(key, value); err != nil {
		return err
	}
	if c.config.AutoSync {
		_ = c.store.Sync()
	}
	return nil
}

// Delete drops an entry, pushing the removal when auto-sync is on.
func (c *Client) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(key); err != nil {
		return err
	}
	if c.config.AutoSync {
		_ = c.store.Sync()
	}
	return nil
}

// KeysWithPrefix lists the entry keys under prefix, e.g. "filters/".
func (c *Client) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	all, err := c.store.Keys()
	if err != nil {
		return nil, err
	}
	var matched [][]byte
	for _, k := range all {
		if bytes.HasPrefix(k, prefix) {
			matched = append(matched, k)
		}
	}
	return matched, nil
}
