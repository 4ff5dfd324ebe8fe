// Package catalog models the packages offered by catalog sources and loads
// them from the source repositories.
//
// A source is a GitHub repository listed in the sources file. Each source
// publishes ports.json and/or winecask.json describing downloadable archives
// and, optionally, a screenshots release carrying preview images. The pipeline
// packages only read Package values and write back Fingerprint, SizeBytes, and
// ImagePath.
package catalog
