// Command pharos browses catalog sources, downloads ports and bottles into
// staging, installs them into the library roots, and keeps preview images
// current.
package main
