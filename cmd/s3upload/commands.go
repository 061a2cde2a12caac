package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"s3upload/internal/service"
)

func newRootCmd(a *app, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "s3upload",
		Short:         "Upload files to S3 with a signed form post",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return a.init(ctx)
		},
	}
	root.SetOut(out)
	root.AddCommand(newPutCmd(a), newKeyCmd(a))
	return root
}

type putFlags struct {
	prefix   string
	cdn      string
	protocol string
	redirect string
	page     string
	pageURL  string
	selector string
	fallback bool
	verify   bool
	asJSON   bool
}

func newPutCmd(a *app) *cobra.Command {
	var f putFlags
	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a file and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.UploadRequest{
				Path:     args[0],
				PageURL:  f.pageURL,
				Selector: f.selector,
				Fallback: f.fallback,
				Verify:   f.verify,
				Prefix:   f.prefix,
				CDN:      f.cdn,
				Protocol: f.protocol,
				Redirect: f.redirect,
			}
			if f.page != "" {
				page, err := os.Open(f.page)
				if err != nil {
					return fmt.Errorf("open page: %w", err)
				}
				defer page.Close()
				req.Page = page
			}

			stop := a.serveMetrics()
			defer stop()

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := context.WithTimeout(parent, a.timeout())
			defer cancel()

			res, err := a.svc.Upload(ctx, req)
			if err != nil {
				if se, ok := service.StatusError(err); ok && se.S3.Code != "" {
					return fmt.Errorf("%w (request id %s)", err, se.S3.RequestID)
				}
				return err
			}

			if f.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.URL)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.prefix, "prefix", "", "key prefix (overrides S3_PREFIX)")
	fl.StringVar(&f.cdn, "cdn", "", "CDN host used in the public URL (overrides S3_CDN)")
	fl.StringVar(&f.protocol, "protocol", "", "protocol for the bucket URL, e.g. https:")
	fl.StringVar(&f.redirect, "redirect", "", "success_action_redirect for the fallback form")
	fl.StringVar(&f.page, "page", "", "HTML page holding the file input")
	fl.StringVar(&f.pageURL, "page-url", "", "URL the page was loaded from")
	fl.StringVar(&f.selector, "selector", "", "CSS selector of the file input (default first file input)")
	fl.BoolVar(&f.fallback, "fallback", false, "use the hidden-form transfer")
	fl.BoolVar(&f.verify, "verify", false, "read the object back anonymously after upload")
	fl.BoolVar(&f.asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key <filename>",
		Short: "Print the object key and public URL a file would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, url, err := service.Preview(a.defaults, a.base, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}
