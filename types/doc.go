// Package types provides core types used across the workflow engine.
// This package has ZERO dependencies on other packages in this module to
// avoid circular imports. All other packages should import types from here.
package types
