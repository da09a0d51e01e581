package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/schoolhub/schoolctl/internal/apiclient"
)

var requestMethods []string = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// multiFlag collects a repeated flag
type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

// readBody accepts an inline body, @file or @- for stdin
func readBody(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	if data == "@-" {
		return io.ReadAll(stdin)
	}
	if path, found := strings.CutPrefix(data, "@"); found {
		return os.ReadFile(path)
	}
	return []byte(data), nil
}

func parsePairs(pairs []string, sep string) (map[string][]string, error) {
	output := map[string][]string{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, sep)
		if !found || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("expected key%svalue, got %q", sep, pair)
		}
		key = strings.TrimSpace(key)
		output[key] = append(output[key], strings.TrimSpace(value))
	}
	return output, nil
}

func requestCommand(ctx context.Context, method string, stderr io.Writer, load appLoader) *Command {
	name := strings.ToLower(method)
	cmd := &Command{
		Name:        name,
		Description: fmt.Sprintf("Send an authenticated %s request", method),
		Usage:       fmt.Sprintf("schoolctl %s [-q key=value]... [-H 'Name: value']... [-d body|@file|@-] [-o json|yaml] <path>", name),
		Examples: []string{
			fmt.Sprintf("schoolctl %s /payments/payments/", name),
		},
	}
	if method != http.MethodGet && method != http.MethodDelete {
		cmd.Examples = append(cmd.Examples, fmt.Sprintf(`schoolctl %s -d '{"amount": "120.00"}' /payments/payments/`, name))
	}
	cmd.Run = func(args []string) error {
		fs := cmd.NewFlagSet(stderr)
		var queryPairs, headerPairs multiFlag
		fs.Var(&queryPairs, "q", "query parameter key=value, can be repeated")
		fs.Var(&headerPairs, "H", "extra header 'Name: value', can be repeated")
		data := fs.String("d", "", "request body, @file reads a file and @- reads stdin")
		contentType := fs.String("content-type", "", "content type of the body (default application/json)")
		output := fs.String("o", outputJSON, "output format: json or yaml")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := validateOutputFormat(*output); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("exactly one path is required, got %d", fs.NArg())
		}
		query, err := parsePairs(queryPairs, "=")
		if err != nil {
			return err
		}
		headers, err := parsePairs(headerPairs, ":")
		if err != nil {
			return err
		}
		body, err := readBody(*data)
		if err != nil {
			return err
		}
		req := apiclient.Request{
			Method:      method,
			Path:        fs.Arg(0),
			Query:       url.Values(query),
			Header:      http.Header{},
			ContentType: *contentType,
		}
		for key, values := range headers {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		if body != nil {
			req.Body = body
		}
		a, err := load()
		if err != nil {
			return err
		}
		defer a.Close()
		resp, err := a.client.Do(ctx, req)
		if err != nil {
			return commandError(a, err)
		}
		return printBody(a.stdout, *output, resp.Body)
	}
	return cmd
}
