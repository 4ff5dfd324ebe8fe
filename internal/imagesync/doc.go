// Package imagesync keeps each catalog source's preview images in step with
// the images.zip asset of its screenshots release.
//
// A small descriptor (images.json, {"id", "size"}) beside the extracted
// images records which asset they came from. When the release reports the
// same asset id and size nothing is downloaded. Otherwise the new archive is
// fetched and extracted aside, and only then swapped in, so a failed refresh
// leaves the previous images and descriptor untouched.
package imagesync
