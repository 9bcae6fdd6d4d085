package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio is IO over a file (обычно os.Stdin) and a writer
type Stdio struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer
}

// NewStdio creates IO over os.Stdin and os.Stdout
func NewStdio() IO {
	return NewFileIO(os.Stdin, os.Stdout)
}

// NewFileIO creates IO reading from in and writing to out
func NewFileIO(in *os.File, out io.Writer) *Stdio {
	return &Stdio{
		in:     in,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	return s.readLine()
}

// ReadPassword читает пароль без эха; если stdin не терминал
// (пайп, файл), читает обычную строку
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	s.Printf("%s", prompt)

	fd := int(s.in.Fd())
	if !term.IsTerminal(fd) {
		return s.readLine()
	}

	pwBytes, err := term.ReadPassword(fd)
	s.Println()
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

func (s *Stdio) readLine() (string, error) {
	input, err := s.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
