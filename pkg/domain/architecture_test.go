package domain_test

import (
	"testing"

	"procedurecore/testutil"
)

// TestDomainImportsStdlibOnly keeps the domain layer free of project and
// third-party dependencies so every other layer can import it without cycles.
func TestDomainImportsStdlibOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.NonStdlibImportForbidden,
		"the domain package must depend on the standard library only")
}
