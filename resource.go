package harvest

import (
	"context"
	"strings"
)

// CollisionPolicy governs what a write does when its target path exists.
type CollisionPolicy int

const (
	// EditName writes to the first free "name (n).ext" instead.
	EditName CollisionPolicy = iota
	// Skip leaves the existing file alone and reports success.
	Skip
	// Strict fails with ECOLLISION.
	Strict
	// WriteOver replaces the existing file.
	WriteOver
)

// String returns the policy name accepted by ParseCollisionPolicy.
func (p CollisionPolicy) String() string {
	switch p {
	case EditName:
		return "edit-name"
	case Skip:
		return "skip"
	case Strict:
		return "strict"
	case WriteOver:
		return "write-over"
	}
	return "unknown"
}

// ParseCollisionPolicy parses a policy name such as "edit-name" or "skip".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edit-name", "edit_name", "editname", "":
		return EditName, nil
	case "skip":
		return Skip, nil
	case "strict":
		return Strict, nil
	case "write-over", "write_over", "writeover", "overwrite":
		return WriteOver, nil
	}
	return 0, Errorf(EINVALID, "unknown collision policy %q", s)
}

// WriteRequest describes one resource to save.
type WriteRequest struct {
	URL string
	Dir string

	// Name is the file name without extension. When empty the name is taken
	// from the URL.
	Name string

	Policy CollisionPolicy
}

// Validate returns an error if the request is missing required fields.
func (r *WriteRequest) Validate() error {
	if r.URL == "" {
		return Errorf(EINVALID, "resource URL required")
	}
	if r.Dir == "" {
		return Errorf(EINVALID, "destination directory required")
	}
	if strings.ContainsAny(r.Name, `/\`) || r.Name == "." || r.Name == ".." {
		return Errorf(EINVALID, "invalid file name %q", r.Name)
	}
	return nil
}

// WriteOutcome reports what a write did.
type WriteOutcome struct {
	// Path is the file written, or the existing file when Skipped.
	Path string

	Bytes int64

	// Hash is the hex xxHash64 of the written content.
	Hash string

	// Skipped is true when the Skip policy left an existing file alone.
	Skipped bool

	// Overwrote is true when the WriteOver policy replaced a file.
	Overwrote bool
}

// ResourceWriter saves remote resources to a directory.
type ResourceWriter interface {
	// Write fetches the resource and stores it under req.Dir.
	// Errors carry EMISSINGEXT, ECOLLISION, EEXHAUSTED or ENETWORK codes.
	Write(ctx context.Context, req WriteRequest) (*WriteOutcome, error)
}
