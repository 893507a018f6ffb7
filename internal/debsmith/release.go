package debsmith

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ReleaseEntry is one record of the remote release index.
type ReleaseEntry struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Arch     string `json:"arch"`
	Filename string `json:"filename"`
	B3Sum    string `json:"b3sum"`
}

const releaseIndexKey = "release-index.json"

// HandlePublishCommand uploads the built artifact, the source bundle and
// the checksum index to the release bucket, then refreshes the remote
// release index. This is the upstream half of the application's update
// channel: installed copies poll the published releases.
func HandlePublishCommand(cfg *Config, bc BuildConfig) error {
	ctx := context.Background()

	client, err := NewReleaseClient(cfg)
	if err != nil {
		return err
	}

	artifact := filepath.Join(DistDir, bc.ArtifactName())
	if _, err := os.Stat(artifact); err != nil {
		return fmt.Errorf("no artifact to publish, run 'debsmith build' first: %w", err)
	}

	sum, err := hashFile(artifact)
	if err != nil {
		return fmt.Errorf("failed to checksum %s: %w", artifact, err)
	}

	// Fetch the current index; a missing index means a first release.
	colArrow.Print("-> ")
	colSuccess.Println("Fetching remote release index")
	var index []ReleaseEntry
	if data, err := client.DownloadFile(ctx, releaseIndexKey); err == nil {
		if err := json.Unmarshal(data, &index); err != nil {
			return fmt.Errorf("failed to parse remote release index: %w", err)
		}
	} else {
		debugf("Remote index not found or error fetching: %v\n", err)
	}

	for _, entry := range index {
		if entry.Name == bc.Slug && entry.Version == bc.Version && entry.Arch == bc.Arch && entry.B3Sum == sum {
			colArrow.Print("-> ")
			colSuccess.Println("Release already published, nothing to do")
			return nil
		}
	}

	if !askForConfirmation(colWarn, "Publish %s %s (%s)?", bc.Slug, bc.Version, bc.Arch) {
		return nil
	}

	uploads := []string{artifact}
	bundle := filepath.Join(DistDir, bc.BundleName())
	if fileExists(bundle) {
		uploads = append(uploads, bundle)
	}
	sums := filepath.Join(DistDir, fmt.Sprintf("%s_%s.b3sums", bc.Slug, bc.Version))
	if fileExists(sums) {
		uploads = append(uploads, sums)
	}

	for _, path := range uploads {
		key := filepath.Base(path)
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", key)
		if err := client.UploadLocalFile(ctx, key, path); err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}

	// Replace any stale record of the same name+arch, keep everything else.
	// Replaced entries are remembered so their remote files can be pruned.
	updated := index[:0]
	var superseded []ReleaseEntry
	for _, entry := range index {
		if entry.Name == bc.Slug && entry.Arch == bc.Arch {
			if entry.Version != bc.Version {
				superseded = append(superseded, entry)
			}
			continue
		}
		updated = append(updated, entry)
	}
	updated = append(updated, ReleaseEntry{
		Name:     bc.Slug,
		Version:  bc.Version,
		Arch:     bc.Arch,
		Filename: bc.ArtifactName(),
		B3Sum:    sum,
	})

	indexBytes, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return err
	}
	if err := client.UploadFile(ctx, releaseIndexKey, indexBytes); err != nil {
		return fmt.Errorf("failed to upload release index: %w", err)
	}

	pruneSuperseded(ctx, client, bc, superseded)

	colArrow.Print("-> ")
	colSuccess.Printf("Published %s %s\n", bc.Slug, bc.Version)
	return nil
}

// pruneSuperseded removes the remote files of index entries the publish just
// replaced. Best-effort: a failed prune leaves orphans in the bucket but
// never fails a publish.
func pruneSuperseded(ctx context.Context, client *ReleaseClient, bc BuildConfig, replaced []ReleaseEntry) {
	if len(replaced) == 0 {
		return
	}

	objects, err := client.ListObjects(ctx, bc.Slug)
	if err != nil {
		cPrintf(colWarn, "Warning: could not list remote files for pruning: %v\n", err)
		return
	}

	for _, key := range supersededKeys(objects, replaced) {
		colArrow.Print("-> ")
		colSuccess.Printf("Pruning superseded %s\n", key)
		if err := client.DeleteFile(ctx, key); err != nil {
			cPrintf(colWarn, "Warning: failed to prune %s: %v\n", key, err)
		}
	}
}

// supersededKeys selects the remote files belonging to replaced index
// entries. Matching is exact per file shape so unrelated packages sharing a
// name prefix are never touched.
func supersededKeys(objects []ReleaseObject, replaced []ReleaseEntry) []string {
	var keys []string
	for _, obj := range objects {
		for _, old := range replaced {
			if obj.Key == old.Filename ||
				obj.Key == fmt.Sprintf("%s_%s.b3sums", old.Name, old.Version) ||
				strings.HasPrefix(obj.Key, fmt.Sprintf("%s-%s.tar.", old.Name, old.Version)) {
				keys = append(keys, obj.Key)
				break
			}
		}
	}
	return keys
}
