package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"locert/internal/engine"
)

func engineProvisionOptions(opts *issueOptions) engine.ProvisionOptions {
	p := engine.ProvisionOptions{SkipHostsFile: opts.SkipHosts}
	if opts.ShowCA {
		p.ReturnCA = engine.CAReturnPath
	}
	return p
}

type issueOptions struct {
	SkipHosts bool
	PrintPEM  bool
	ShowCA    bool
}

func NewIssueCmd() *cobra.Command {
	opts := &issueOptions{}

	cmd := &cobra.Command{
		Use:   "issue <domain> [domain...]",
		Short: "Issue a locally-trusted certificate for one or more domains",
		Long: `Issue a TLS certificate for the given domains, signed by the locert
root CA. On first use the root CA is generated and installed into the
system and browser trust stores; you may be prompted for your password.

Certificates are cached per domain set: issuing again for the same
domains (in any order) returns the existing material.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipHosts, "skip-hosts", false, "do not add hosts-file entries for the domains")
	cmd.Flags().BoolVar(&opts.PrintPEM, "print", false, "print the key and certificate PEM to stdout")
	cmd.Flags().BoolVar(&opts.ShowCA, "show-ca", false, "also report the root CA certificate path")

	return cmd
}

func runIssue(domains []string, opts *issueOptions) error {
	e, cfg, err := loadEngine()
	if err != nil {
		return err
	}

	provOpts := engineProvisionOptions(opts)
	res, err := e.Provision(domains, provOpts)
	if err != nil {
		return err
	}

	fmt.Println("✅ Certificate ready")
	fmt.Printf("   Config root: %s\n", cfg.ConfigRoot)
	for _, d := range domains {
		fmt.Printf("   Domain:      %s\n", d)
	}

	if opts.PrintPEM {
		os.Stdout.Write(res.KeyPEM)
		os.Stdout.Write(res.CertPEM)
	}
	if opts.ShowCA {
		fmt.Printf("   Root CA:     %s\n", res.CAPath)
	}
	if !opts.SkipHosts && !cfg.Trust.SkipHostsFile {
		// The engine runs hosts updates in the background; drain them
		// before the process exits or they never complete.
		if e.WaitHosts(15 * time.Second) {
			fmt.Println("   Hosts file entries are up to date.")
		} else {
			fmt.Println("   Hosts file update is still pending; check /etc/hosts.")
		}
	}
	return nil
}
