// Command dittoxfer-cli talks to a DittoXfer server.
//
//	dittoxfer-cli [-server host:port] list
//	dittoxfer-cli [-server host:port] get <name> [local-path]
//	dittoxfer-cli [-server host:port] upload <local-path> [name]
//	dittoxfer-cli [-server host:port] delete <name>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/marmos91/dittoxfer/pkg/client"
	"github.com/olekukonko/tablewriter"
)

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgCyan)
)

func main() {
	server := flag.String("server", "localhost:7778", "Server address")
	timeout := flag.Duration("timeout", 60*time.Second, "Timeout of one command")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *server, *timeout, flag.Args(), os.Stdout); err != nil {
		if client.IsResponseError(err) {
			_, _ = errorColor.Fprintf(os.Stderr, "Gagal: %v\n", err)
		} else {
			_, _ = errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: dittoxfer-cli [flags] <command> [args]

Commands:
  list                          List stored files
  get <name> [local-path]       Download a file (default: download_<name>)
  upload <local-path> [name]    Upload a file (default name: base name of path)
  delete <name>                 Delete a file

Flags:
`)
	flag.PrintDefaults()
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, addr string, timeout time.Duration, args []string, out io.Writer) error {
	cmd, params := strings.ToLower(args[0]), args[1:]

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c, err := client.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	switch cmd {
	case "list":
		return runList(ctx, c, out)
	case "get":
		if len(params) < 1 || len(params) > 2 {
			return fmt.Errorf("%w: get <name> [local-path]", errUsage)
		}
		local := "download_" + params[0]
		if len(params) == 2 {
			local = params[1]
		}
		return runGet(ctx, c, params[0], local, out)
	case "upload":
		if len(params) < 1 || len(params) > 2 {
			return fmt.Errorf("%w: upload <local-path> [name]", errUsage)
		}
		name := filepath.Base(params[0])
		if len(params) == 2 {
			name = params[1]
		}
		return runUpload(ctx, c, params[0], name, out)
	case "delete":
		if len(params) != 1 {
			return fmt.Errorf("%w: delete <name>", errUsage)
		}
		msg, err := c.Delete(ctx, params[0])
		if err != nil {
			return err
		}
		_, _ = successColor.Fprintln(out, msg)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func runList(ctx context.Context, c *client.Client, out io.Writer) error {
	names, err := c.List(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, _ = infoColor.Fprintln(out, "Tidak ada file")
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Name", "Type")
	for _, name := range names {
		fileType := "-"
		if ext := filepath.Ext(name); ext != "" {
			fileType = strings.ToUpper(strings.TrimPrefix(ext, "."))
		}
		if err := table.Append([]string{name, fileType}); err != nil {
			return err
		}
	}
	return table.Render()
}

func runGet(ctx context.Context, c *client.Client, name, local string, out io.Writer) error {
	data, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := os.WriteFile(local, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", local, err)
	}
	_, _ = successColor.Fprintf(out, "File %s berhasil didownload sebagai %s (%s)\n", name, local, formatSize(len(data)))
	return nil
}

func runUpload(ctx context.Context, c *client.Client, local, name string, out io.Writer) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return fmt.Errorf("read %s: %w", local, err)
	}
	_, _ = infoColor.Fprintf(out, "Mengupload file %s (%s)...\n", local, formatSize(len(data)))

	msg, err := c.Upload(ctx, name, data)
	if err != nil {
		return err
	}
	_, _ = successColor.Fprintln(out, msg)
	return nil
}

// formatSize formats a byte count in human-readable form.
func formatSize(size int) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := unit, 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
