// Package preflight provides readiness checks for the filesystem paths and
// the sample registry rasterkit depends on.
//
// The CLI "rasterkit check" command runs RunAll and renders each result;
// individual checks (CheckDirectoryAccess) are also used on their own.
package preflight
