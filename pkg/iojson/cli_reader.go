package iojson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// FileReader decodes a JSON document of type T named by a --file flag or
// the command's first argument. "-" or no source at all reads Stdin.
type FileReader[T any] struct {
	// Stdin replaces os.Stdin when set.
	Stdin io.Reader

	path string
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "path to JSON file, - for stdin (may also be given as the first argument)",
		Destination: &fr.path,
	}
}

// Read decodes from the configured source. arg, usually the command's
// first argument, is used when the flag was not set.
func (fr *FileReader[T]) Read(arg string) (T, error) {
	var input T

	src := fr.path
	if src == "" {
		src = arg
	}

	r, closeFn, err := fr.open(src)
	if err != nil {
		return input, err
	}
	defer closeFn()

	if err := json.NewDecoder(r).Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return input, errors.New("decode JSON: empty input")
		}
		return input, fmt.Errorf("decode JSON: %w", err)
	}
	return input, nil
}

func (fr *FileReader[T]) open(src string) (io.Reader, func(), error) {
	if src != "" && src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return nil, nil, fmt.Errorf("open file: %w", err)
		}
		return f, func() { _ = f.Close() }, nil
	}

	if fr.Stdin != nil {
		return fr.Stdin, func() {}, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, nil, errors.New("no input provided (stdin is a terminal); pass a file or pipe JSON input")
	}
	return os.Stdin, func() {}, nil
}
