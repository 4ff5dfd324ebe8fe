// Package preflight runs environment checks shared by `pharos doctor` and the
// download worker: directory access, free space on the staging volume, and
// reachability of the GitHub API.
package preflight
