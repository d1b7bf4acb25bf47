// Package archive keeps encoded object graphs in a blob store. Every save
// writes a new version; loading rebuilds the graph through the type registry
// with its tracked state intact.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"bizcore/internal/blob"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

// ErrNoVersions is returned by Load when a graph was never archived.
var ErrNoVersions = errors.New("archive: no versions")

const versionLayout = "20060102T150405.000000000Z"

// Archive stores graphs under <prefix>/<type>/<id>/<version>.json.
type Archive struct {
	store    blob.Store
	registry *portal.Registry
	prefix   string
	now      func() time.Time
}

// Option configures an Archive.
type Option func(*Archive)

// WithPrefix sets the key prefix. The default is "graphs".
func WithPrefix(prefix string) Option {
	return func(a *Archive) { a.prefix = strings.Trim(prefix, "/") }
}

// WithClock sets the version clock.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an archive over store that resolves types through registry.
func New(store blob.Store, registry *portal.Registry, opts ...Option) *Archive {
	a := &Archive{store: store, registry: registry, prefix: "graphs", now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Save writes a new version of obj's graph. Objects with open edits are
// refused.
func (a *Archive) Save(ctx context.Context, obj domain.Object) (blob.Info, error) {
	doc, err := domain.Encode(obj)
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive %s: %w", obj.Core().TypeName(), err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive %s: encode: %w", doc.Type, err)
	}
	key := a.key(doc.Type, doc.ID, a.now().UTC().Format(versionLayout))
	info, err := a.store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"type": doc.Type, "id": doc.ID},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive %s %s: %w", doc.Type, doc.ID, err)
	}
	return info, nil
}

// Versions lists the stored versions of a graph, oldest first.
func (a *Archive) Versions(ctx context.Context, typeName, id string) ([]blob.Info, error) {
	infos, err := a.store.List(ctx, a.key(typeName, id, ""))
	if err != nil {
		return nil, fmt.Errorf("list versions %s %s: %w", typeName, id, err)
	}
	return infos, nil
}

// Load rebuilds the latest version of a graph.
func (a *Archive) Load(ctx context.Context, typeName, id string) (domain.Object, error) {
	versions, err := a.Versions(ctx, typeName, id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("load %s %s: %w", typeName, id, ErrNoVersions)
	}
	return a.LoadVersion(ctx, versions[len(versions)-1].Key)
}

// LoadVersion rebuilds the graph stored at key.
func (a *Archive) LoadVersion(ctx context.Context, key string) (domain.Object, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var doc domain.Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, fmt.Errorf("load %s: decode: %w", key, err)
	}
	factory, err := a.registry.Factory(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	obj, err := domain.Decode(&doc, factory)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return obj, nil
}

// Purge deletes every version of a graph and returns how many were removed.
func (a *Archive) Purge(ctx context.Context, typeName, id string) (int, error) {
	versions, err := a.Versions(ctx, typeName, id)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, v := range versions {
		ok, err := a.store.Delete(ctx, v.Key)
		if err != nil {
			return removed, fmt.Errorf("purge %s: %w", v.Key, err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (a *Archive) key(typeName, id, version string) string {
	dir := path.Join(a.prefix, typeName, id) + "/"
	if version == "" {
		return dir
	}
	return dir + version + ".json"
}
