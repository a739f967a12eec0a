// Command seed_books loads a YAML catalogue into a running library server.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// entry is one book of the catalogue, in both YAML and request form.
type entry struct {
	BookID int64  `yaml:"book_id" json:"book_id"`
	Title  string `yaml:"title" json:"title"`
	Author string `yaml:"author" json:"author"`
	ISBN   string `yaml:"isbn" json:"isbn"`
}

type catalogue struct {
	Books []entry `yaml:"books"`
}

func loadCatalogue(path string) (catalogue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalogue{}, fmt.Errorf("read catalogue: %w", err)
	}
	var c catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return catalogue{}, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	return c, nil
}

// postBook creates one book and returns the server's message on failure.
func postBook(ctx context.Context, client *http.Client, baseURL string, b entry) error {
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/books", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var e struct {
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return errors.New(e.Message)
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}

// seed posts every book, reporting each result to out.
func seed(ctx context.Context, client *http.Client, baseURL string, books []entry, out io.Writer) (ok, failed int) {
	for _, b := range books {
		fmt.Fprintf(out, "Importing: %s by %s... ", b.Title, b.Author)
		if err := postBook(ctx, client, baseURL, b); err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %d)\n", b.BookID)
		ok++
	}
	return ok, failed
}

func main() {
	var (
		file    string
		baseURL string
	)
	cmd := &cobra.Command{
		Use:          "seed_books",
		Short:        "Load a YAML catalogue into a running library server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadCatalogue(file)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 10 * time.Second}
			out := cmd.OutOrStdout()

			ok, failed := seed(cmd.Context(), client, strings.TrimRight(baseURL, "/"), c.Books, out)
			fmt.Fprintf(out, "\nImport complete!\n")
			fmt.Fprintf(out, "Successfully imported: %d books\n", ok)
			fmt.Fprintf(out, "Errors: %d\n", failed)
			if failed > 0 {
				return fmt.Errorf("%d book(s) failed to import", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "cmd/seed_books/catalogue.yaml", "YAML catalogue to load")
	cmd.Flags().StringVar(&baseURL, "server", "http://localhost:8080", "base URL of the library server")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
