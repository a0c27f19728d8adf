package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fwojciec/harvest"
	"github.com/google/uuid"
)

// Run executes the get command.
func (c *GetCmd) Run(deps *Dependencies) error {
	policy := harvest.EditName
	if deps.Profile != nil {
		policy = deps.Profile.CollisionPolicy(policy)
	}
	if c.Policy != "" {
		p, err := harvest.ParseCollisionPolicy(c.Policy)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", harvest.ErrorMessage(err))
			return err
		}
		policy = p
	}

	out, err := deps.Writer.Write(deps.Ctx, harvest.WriteRequest{
		URL:    c.URL,
		Dir:    c.Dir,
		Name:   c.Name,
		Policy: policy,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}

	if out.Skipped {
		fmt.Fprintf(deps.Stdout, "Skipped %s (file exists)\n", out.Path)
	} else {
		fmt.Fprintf(deps.Stdout, "Saved %s (%s)\n", out.Path, humanize.IBytes(uint64(out.Bytes)))
	}

	recordDownload(deps, uuid.NewString(), c.URL, policy, out)
	return nil
}
