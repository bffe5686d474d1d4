package testutil

import "flag"

// FlagEngineLibrary names a real engine shared library for in-process tests; they are skipped when empty.
var FlagEngineLibrary = flag.String("testutil.engine-library", "", "Path to an engine library for native transport tests")
