package schema

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bufbuild/protocompile"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	compilerCacheSize = 32
	compilerCacheTTL  = 5 * time.Minute
)

// Compiler compiles a directory of .proto sources into a FileDescriptorSet
// without shelling out to protoc. Results are cached by directory content
// fingerprint, so repeated compiles of an unchanged tree (watch mode, N-way
// merges that revisit a version) are free.
type Compiler struct {
	// Logger receives compile diagnostics. Defaults to the standard logger.
	Logger *logrus.Logger

	cache *lru.LRU[string, *descriptorpb.FileDescriptorSet]
}

// NewCompiler creates a Compiler with a content-keyed result cache.
func NewCompiler() *Compiler {
	return &Compiler{
		cache: lru.NewLRU[string, *descriptorpb.FileDescriptorSet](compilerCacheSize, nil, compilerCacheTTL),
	}
}

func (c *Compiler) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logrus.StandardLogger()
}

// CompileDir compiles every .proto file under dir (recursively) into a single
// descriptor set. Imports resolve against dir, with the well-known types
// available implicitly.
func (c *Compiler) CompileDir(ctx context.Context, dir string) (*descriptorpb.FileDescriptorSet, error) {
	protoFiles, fingerprint, err := scanProtoDir(dir)
	if err != nil {
		return nil, err
	}
	if len(protoFiles) == 0 {
		return nil, fmt.Errorf("no .proto files found in %s", dir)
	}

	if c.cache != nil {
		if set, ok := c.cache.Get(fingerprint); ok {
			c.logger().WithField("dir", dir).Debug("descriptor cache hit")
			return set, nil
		}
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: []string{dir},
		}),
	}

	files, err := compiler.Compile(ctx, protoFiles...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", dir, err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	for _, f := range files {
		set.File = append(set.File, protodesc.ToFileDescriptorProto(f))
	}

	if c.cache != nil {
		c.cache.Add(fingerprint, set)
	}
	c.logger().WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(protoFiles),
	}).Debug("compiled proto sources")

	return set, nil
}

// scanProtoDir lists .proto files relative to dir and fingerprints the tree
// by path, size and mtime.
func scanProtoDir(dir string) ([]string, string, error) {
	var files []string
	h := sha256.New()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		info, err := d.Info()
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s|%d|%d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Strings(files)
	fmt.Fprintf(h, "root:%s", dir)
	return files, hex.EncodeToString(h.Sum(nil)), nil
}
