package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir(), "")
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			info, err := s.Put(ctx, "img/a.svg", strings.NewReader("<svg/>"), PutOptions{ContentType: "image/svg+xml"})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "img/a.svg" || info.Size != 6 {
				t.Fatalf("unexpected info %+v", info)
			}
			if _, err := s.Put(ctx, "img/a.svg", strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists on second put, got %v", err)
			}

			got, rc, err := s.Get(ctx, "img/a.svg")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "<svg/>" {
				t.Fatalf("unexpected body %q", body)
			}
			if !strings.HasPrefix(got.ContentType, "image/svg+xml") {
				t.Fatalf("unexpected content type %q", got.ContentType)
			}

			if _, err := s.Put(ctx, "img/b.svg", bytes.NewReader([]byte("<svg></svg>")), PutOptions{ContentType: "image/svg+xml"}); err != nil {
				t.Fatalf("put b: %v", err)
			}
			if _, err := s.Put(ctx, "other/c.txt", strings.NewReader("c"), PutOptions{ContentType: "text/plain"}); err != nil {
				t.Fatalf("put c: %v", err)
			}
			list, err := s.List(ctx, "img/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "img/a.svg" || list[1].Key != "img/b.svg" {
				t.Fatalf("unexpected listing %+v", list)
			}

			existed, err := s.Delete(ctx, "img/a.svg")
			if err != nil || !existed {
				t.Fatalf("delete existing: existed=%v err=%v", existed, err)
			}
			existed, err = s.Delete(ctx, "img/a.svg")
			if err != nil || existed {
				t.Fatalf("delete missing: existed=%v err=%v", existed, err)
			}
			if _, err := s.Head(ctx, "img/a.svg"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound from head, got %v", err)
			}
			if _, _, err := s.Get(ctx, "img/a.svg"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound from get, got %v", err)
			}
		})
	}
}

func TestReplaceOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, body := range []string{"first", "second render"} {
				if _, err := Replace(ctx, s, "img/population.svg", strings.NewReader(body), PutOptions{ContentType: "image/svg+xml"}); err != nil {
					t.Fatalf("replace: %v", err)
				}
			}
			_, rc, err := s.Get(ctx, "img/population.svg")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			defer func() { _ = rc.Close() }()
			body, _ := io.ReadAll(rc)
			if string(body) != "second render" {
				t.Fatalf("expected last write to win, got %q", body)
			}
			list, _ := s.List(ctx, "")
			if len(list) != 1 {
				t.Fatalf("expected a single artifact, got %+v", list)
			}
		})
	}
}

func TestReplaceKeepsPreviousOnFailedWrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := Replace(ctx, s, "img/population.svg", strings.NewReader("first"), PutOptions{ContentType: "image/svg+xml"}); err != nil {
				t.Fatalf("replace: %v", err)
			}
			broken := iotest.ErrReader(errors.New("render aborted"))
			if _, err := Replace(ctx, s, "img/population.svg", broken, PutOptions{ContentType: "image/svg+xml"}); err == nil {
				t.Fatalf("expected failed write to surface")
			}
			_, rc, err := s.Get(ctx, "img/population.svg")
			if err != nil {
				t.Fatalf("previous artifact lost: %v", err)
			}
			defer func() { _ = rc.Close() }()
			if body, _ := io.ReadAll(rc); string(body) != "first" {
				t.Fatalf("previous artifact changed to %q", body)
			}
		})
	}
}

func TestReplaceAcrossFilesystemStores(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for w := 0; w < 2; w++ {
		// Separate instances share no lock, like two processes on one root.
		s, err := NewFilesystem(root, "")
		if err != nil {
			t.Fatalf("fs store: %v", err)
		}
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				body := fmt.Sprintf("writer %d render %d", w, i)
				if _, err := Replace(ctx, s, "img/population.svg", strings.NewReader(body), PutOptions{}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent replace: %v", err)
	}
	s, _ := NewFilesystem(root, "")
	list, err := s.List(ctx, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected a single artifact, got %+v %v", list, err)
	}
	_, rc, err := s.Get(ctx, "img/population.svg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = rc.Close() }()
	if body, _ := io.ReadAll(rc); !strings.HasSuffix(string(body), "render 19") {
		t.Fatalf("expected a complete final render, got %q", body)
	}
}

func TestURL(t *testing.T) {
	ctx := context.Background()
	if _, err := NewMemory().URL(ctx, "img/a.svg", 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("memory URL should be unsupported, got %v", err)
	}
	fsStore, err := NewFilesystem(t.TempDir(), "/static/")
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	if u, err := fsStore.URL(ctx, "img/a.svg", 0); err != nil || u != "/static/img/a.svg" {
		t.Fatalf("fs URL=%q err=%v", u, err)
	}
	u, err := NewMockS3ForTests().URL(ctx, "img/a.svg", 0)
	if err != nil {
		t.Fatalf("s3 presign: %v", err)
	}
	if !strings.Contains(u, "mock-bucket/img/a.svg") || !strings.Contains(u, "X-Amz-Signature") {
		t.Fatalf("unexpected presigned url %q", u)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("default driver: %v %v", s, err)
	}
	s, err = Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
