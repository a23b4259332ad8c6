// Command contact sends a message through the contact form API from a
// terminal. Missing fields are prompted for.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/nazarhussain/folio-courier/env"
	"github.com/nazarhussain/folio-courier/internal/client"
	"github.com/nazarhussain/folio-courier/internal/form"
)

func main() {
	env.Load()

	endpoint := flag.String("endpoint", env.Env("CONTACT_ENDPOINT", "http://localhost:3000/api/contact"), "contact API URL")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "print status transitions")
	var sub form.Submission
	flag.StringVar(&sub.Name, "name", "", "your name")
	flag.StringVar(&sub.Email, "email", "", "your email address")
	flag.StringVar(&sub.Subject, "subject", "", "message subject")
	flag.StringVar(&sub.Message, "message", "", "message body")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []client.Option
	if *verbose {
		opts = append(opts, client.WithStatusListener(func(s client.Status) {
			fmt.Fprintf(os.Stderr, "[%s]\n", s)
		}))
	}
	poster := client.NewHTTPPoster(*endpoint, nil)
	f := client.NewForm(poster, opts...)

	in := bufio.NewReader(os.Stdin)
	os.Exit(run(ctx, f, in, os.Stdout, sub, *timeout))
}

func run(ctx context.Context, f *client.Form, in *bufio.Reader, out io.Writer, sub form.Submission, timeout time.Duration) int {
	missing := []string{"name", "email", "subject", "message"}
	for {
		for _, field := range missing {
			if err := prompt(in, out, field, &sub); err != nil {
				fmt.Fprintln(out, "aborted:", err)
				return 1
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := f.Submit(reqCtx, sub)
		cancel()
		if errors.Is(err, client.ErrBusy) {
			continue
		}

		switch res.Outcome {
		case client.OutcomeSuccess:
			fmt.Fprintln(out, res.Message)
			if res.ID != 0 {
				fmt.Fprintf(out, "reference: #%d\n", res.ID)
			}
			return 0
		case client.OutcomeBlocked:
			fmt.Fprintln(out, res.Message)
			fmt.Fprint(out, "Press Enter to send. ")
			if _, err := in.ReadString('\n'); err != nil {
				return 1
			}
			missing = nil
		default:
			fmt.Fprintln(out, res.Message)
			if len(res.FieldErrors) == 0 {
				if err != nil {
					fmt.Fprintln(out, "error:", err)
				}
				return 1
			}
			missing = missing[:0]
			for field, msg := range res.FieldErrors {
				fmt.Fprintf(out, "  %s: %s\n", field, msg)
				p := fieldPtr(&sub, field)
				if p == nil {
					return 1
				}
				*p = ""
				missing = append(missing, field)
			}
			sort.Slice(missing, func(i, j int) bool { return fieldOrder(missing[i]) < fieldOrder(missing[j]) })
		}
	}
}

func prompt(in *bufio.Reader, out io.Writer, field string, sub *form.Submission) error {
	dst := fieldPtr(sub, field)
	if dst == nil || *dst != "" {
		return nil
	}
	fmt.Fprintf(out, "%s: ", strings.ToUpper(field[:1])+field[1:])
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || err != io.EOF) {
		return err
	}
	*dst = strings.TrimSpace(line)
	return nil
}

func fieldPtr(sub *form.Submission, field string) *string {
	switch field {
	case "name":
		return &sub.Name
	case "email":
		return &sub.Email
	case "subject":
		return &sub.Subject
	case "message":
		return &sub.Message
	}
	return nil
}

func fieldOrder(field string) int {
	switch field {
	case "name":
		return 0
	case "email":
		return 1
	case "subject":
		return 2
	default:
		return 3
	}
}
