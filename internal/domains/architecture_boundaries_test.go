package domains

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const modulePath = "github.com/angganurf/wunderland-sol"

func TestArchitecture_DomainPackagesDisallowAdapterCompositionInfraImports(t *testing.T) {
	forbiddenPrefixes := []string{
		modulePath + "/internal/adapters",
		modulePath + "/internal/composition",
		modulePath + "/internal/ledger",
		modulePath + "/internal/metrics",
		modulePath + "/internal/config",
		modulePath + "/internal/platform",
		modulePath + "/internal/keyring",
		modulePath + "/internal/store/leveldbstore",
		modulePath + "/internal/store/snapshotstore",
		"log/slog",
		"net/http",
	}
	violations := scanDomainImports(t, forbiddenPrefixes)
	if len(violations) > 0 {
		t.Fatalf("domain boundary violations detected:\n- %s", strings.Join(violations, "\n- "))
	}
}

// Signatures are verified before a call reaches the domain; the domain only
// sees AgentSignature results.
func TestArchitecture_DomainPackagesDoNotVerifySignatures(t *testing.T) {
	violations := scanDomainImports(t, []string{"crypto/ed25519"})
	if len(violations) > 0 {
		t.Fatalf("signature verification leaked into domains:\n- %s", strings.Join(violations, "\n- "))
	}
}

func scanDomainImports(t *testing.T, forbiddenPrefixes []string) []string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve current test file path")
	}
	domainsDir := filepath.Dir(currentFile)

	fset := token.NewFileSet()
	var violations []string
	walkErr := filepath.WalkDir(domainsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return fmt.Errorf("parse file %s: %w", path, err)
		}
		for _, imp := range parsed.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`)
			for _, prefix := range forbiddenPrefixes {
				if !hasPrefixImport(importPath, prefix) {
					continue
				}
				pos := fset.Position(imp.Path.Pos())
				relPath, relErr := filepath.Rel(domainsDir, path)
				if relErr != nil {
					relPath = path
				}
				violations = append(violations, fmt.Sprintf("%s:%d imports %q", relPath, pos.Line, importPath))
				break
			}
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk domains tree: %v", walkErr)
	}
	return violations
}

func hasPrefixImport(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
