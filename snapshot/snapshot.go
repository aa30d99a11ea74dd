package snapshot

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mezonai/zakat/jsonx"
	"github.com/mezonai/zakat/ledger"
	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/types"
)

const FileName = "snapshot-latest.json"

type SnapshotMeta struct {
	Height         uint64    `json:"height"`
	ExportedAt     time.Time `json:"exported_at"`
	RegistryDigest string    `json:"registry_digest"`
}

// SnapshotFile is the on-disk export of a ledger.
type SnapshotFile struct {
	Meta   SnapshotMeta    `json:"meta"`
	Ledger ledger.Snapshot `json:"ledger"`
}

// ComputeRegistryDigest hashes every registry entry, so a file whose balances
// were edited by hand is caught before the chain is even replayed.
func ComputeRegistryDigest(nodes []*types.Node) string {
	digest := ledger.ComputeNodesDeltaHash(nodes)
	return hex.EncodeToString(digest[:])
}

func NewSnapshotFile(snap ledger.Snapshot) *SnapshotFile {
	var height uint64
	if n := len(snap.Blocks); n > 0 {
		height = snap.Blocks[n-1].Index
	}
	return &SnapshotFile{
		Meta: SnapshotMeta{
			Height:         height,
			ExportedAt:     time.Now().UTC(),
			RegistryDigest: ComputeRegistryDigest(snap.Nodes),
		},
		Ledger: snap,
	}
}

// Export writes snap to path as indented JSON.
func Export(path string, snap ledger.Snapshot) error {
	data, err := jsonx.MarshalIndent(NewSnapshotFile(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	logx.Info("SNAPSHOT", fmt.Sprintf("Exported ledger %s | blocks=%d | path=%s", snap.Seed, len(snap.Blocks), path))
	return nil
}

// WriteLatest exports snap as dir/snapshot-latest.json and removes any other
// JSON file in dir.
func WriteLatest(dir string, snap ledger.Snapshot) (string, error) {
	latestPath := filepath.Join(dir, FileName)
	if err := Export(latestPath, snap); err != nil {
		return "", err
	}
	if err := cleanupOldSnapshots(dir, latestPath); err != nil {
		logx.Error("SNAPSHOT", "Failed to cleanup old snapshots:", err)
	}
	return latestPath, nil
}

// ReadSnapshot loads a snapshot file from disk
func ReadSnapshot(path string) (*SnapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s SnapshotFile
	if err := jsonx.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}

// Import reads path, checks the registry digest, restores the ledger and
// re-validates it. Nothing is returned for a file that fails any check.
func Import(path string, cfg ledger.Config) (*ledger.Ledger, error) {
	file, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}
	if got := ComputeRegistryDigest(file.Ledger.Nodes); got != file.Meta.RegistryDigest {
		return nil, fmt.Errorf("registry digest mismatch: file says %s, computed %s", file.Meta.RegistryDigest, got)
	}
	l, err := ledger.Restore(cfg, file.Ledger)
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("imported ledger is invalid: %w", err)
	}
	if l.Height() != file.Meta.Height {
		return nil, fmt.Errorf("snapshot height %d does not match chain height %d", file.Meta.Height, l.Height())
	}
	logx.Info("SNAPSHOT", fmt.Sprintf("Imported ledger %s | height=%d", l.Seed(), l.Height()))
	return l, nil
}

func cleanupOldSnapshots(dir, latestPath string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read snapshot dir: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		filePath := filepath.Join(dir, file.Name())
		if filePath != latestPath {
			if err := os.Remove(filePath); err != nil {
				logx.Error("SNAPSHOT", "Failed to remove old snapshot:", filePath, err)
			}
		}
	}

	return nil
}
