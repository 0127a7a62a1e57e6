package fragment

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ralt/rpmsync/internal/models"
	"github.com/sirupsen/logrus"
)

// Default binaries and deadline of the createrepo tool
const (
	DefaultCreaterepo = "createrepo_c"
	DefaultMergerepo  = "mergerepo_c"
	DefaultTimeout    = 10 * time.Minute
)

// Createrepo runs the createrepo_c and mergerepo_c binaries
type Createrepo struct {
	createrepo  string
	mergerepo   string
	timeout     time.Duration
	compression string
}

// NewCreaterepo creates the tool. Empty values select the defaults.
func NewCreaterepo(createrepo, mergerepo string, timeout time.Duration, compression string) *Createrepo {
	if createrepo == "" {
		createrepo = DefaultCreaterepo
	}
	if mergerepo == "" {
		mergerepo = DefaultMergerepo
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Createrepo{
		createrepo:  createrepo,
		mergerepo:   mergerepo,
		timeout:     timeout,
		compression: compression,
	}
}

// Generate runs createrepo_c in compatibility mode against root
func (c *Createrepo) Generate(ctx context.Context, root string) error {
	if err := c.run(ctx, c.createrepo, "--compatibility", root); err != nil {
		return fmt.Errorf("%w: %v", models.ErrFragmentGeneration, err)
	}
	return nil
}

// Merge runs mergerepo_c over repos, keeping every package version
func (c *Createrepo) Merge(ctx context.Context, repos []string, out string) error {
	args := []string{
		"-d",
		"--all",
		"--omit-baseurl",
		"--compress-type=" + c.compression,
		"--outputdir", out,
	}
	for _, repo := range repos {
		args = append(args, "--repo", repo)
	}

	if err := c.run(ctx, c.mergerepo, args...); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMergeFailed, err)
	}
	return nil
}

func (c *Createrepo) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logrus.Debugf("Running %s %s", name, strings.Join(args, " "))

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if output.Len() > 0 {
		logrus.Debugf("%s output:\n%s", name, output.String())
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%s timed out after %s", name, c.timeout)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
