package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type policyHashFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputePolicyHashFromPath fingerprints the rego and data files under
// policyPath so the loaded policy can be identified in logs.
func ComputePolicyHashFromPath(policyPath string) (string, error) {
	info, err := os.Stat(policyPath)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(policyPath)
		if err != nil {
			return "", err
		}
		return sha256Hex(data), nil
	}
	return ComputePolicyHashFromFS(os.DirFS(policyPath), ".")
}

func ComputePolicyHashFromFS(fsys fs.FS, root string) (string, error) {
	var files []policyHashFile
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == "." {
			return nil
		}
		base := filepath.Base(path)
		if d.IsDir() {
			if strings.HasPrefix(base, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || !(strings.HasSuffix(base, ".rego") || base == "data.json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		files = append(files, policyHashFile{Path: filepath.ToSlash(path), SHA256: sha256Hex(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	payload, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return sha256Hex(payload), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
