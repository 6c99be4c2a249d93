package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/medadmin"
	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

type fakeMirror struct {
	keys   []string
	hashes []string
}

func (f *fakeMirror) Key(dirName, fileName string) string { return dirName + "/" + fileName }

func (f *fakeMirror) Upload(_ context.Context, key, _, sha256 string) error {
	f.keys = append(f.keys, key)
	f.hashes = append(f.hashes, sha256)
	return nil
}

type fakePublisher struct {
	paths []string
	rows  int64
}

func (f *fakePublisher) Publish(_ context.Context, _, path, _ string) (int64, error) {
	f.paths = append(f.paths, path)
	return f.rows, nil
}

func TestPersister_Persist(t *testing.T) {
	root := t.TempDir()
	mirror := &fakeMirror{}
	pub := &fakePublisher{rows: 3}
	p := &Persister{
		Root:      root,
		DirName:   "rclif-2.1",
		Schemas:   medadmin.SchemaFor,
		Mirror:    mirror,
		Publisher: pub,
		Log:       zerolog.Nop(),
	}

	sum, err := p.Persist(context.Background(), model.TableMedAdminContinuous, testEvents())
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	wantPath := filepath.Join(root, "rclif-2.1", "clif_medication_admin_continuous.parquet")
	if sum.Path != wantPath {
		t.Errorf("path = %q, want %q", sum.Path, wantPath)
	}
	if sum.Rows != 3 {
		t.Errorf("rows = %d, want 3", sum.Rows)
	}
	hash, err := normalize.FileHash(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if sum.SHA256 != hash {
		t.Errorf("sha256 = %q, want %q", sum.SHA256, hash)
	}
	if len(mirror.keys) != 1 || mirror.keys[0] != "rclif-2.1/clif_medication_admin_continuous.parquet" {
		t.Errorf("mirror keys = %v", mirror.keys)
	}
	if len(mirror.hashes) != 1 || mirror.hashes[0] != hash {
		t.Errorf("mirror hashes = %v", mirror.hashes)
	}
	if len(pub.paths) != 1 || pub.paths[0] != wantPath {
		t.Errorf("published paths = %v", pub.paths)
	}
}

func TestPersister_PublishCountMismatch(t *testing.T) {
	p := &Persister{Root: t.TempDir(), DirName: "out", Publisher: &fakePublisher{rows: 1}, Log: zerolog.Nop()}

	_, err := p.Persist(context.Background(), model.TableMedAdminIntermittent, testEvents())
	if !errors.Is(err, model.ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

func TestPersister_FileOnly(t *testing.T) {
	p := &Persister{Root: t.TempDir(), DirName: "out", Log: zerolog.Nop()}

	sum, err := p.Persist(context.Background(), model.TableMedAdminIntermittent, testEvents()[:2])
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if sum.Rows != 2 || sum.SHA256 == "" {
		t.Errorf("summary = %+v", sum)
	}
}
