// Command bao hashes, encodes, and decodes files using the verified
// streaming tree hash implemented by package bao.
package main

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Librechain/bao"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:          "bao",
		Short:        "A verified streaming tree hash",
		SilenceUsage: true,
	}
	root.AddCommand(hashCmd(), encodeCmd(), decodeCmd(), sliceCmd(), decodeSliceCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("bao failed")
	}
}

func hashCmd() *cobra.Command {
	var encoded bool
	cmd := &cobra.Command{
		Use:   "hash [input]",
		Short: "Print the root hash of a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(arg(args, 0))
			if err != nil {
				return err
			}
			defer in.Close()

			var h bao.Hash
			if encoded {
				h, err = bao.HashFromEncoded(in)
				if err != nil {
					return errors.Wrap(err, "hashing encoded input")
				}
			} else {
				w := bao.NewHashWriter()
				if _, err := io.Copy(w, in); err != nil {
					return errors.Wrap(err, "reading input")
				}
				h = w.Finish()
			}
			_, err = io.WriteString(os.Stdout, hex.EncodeToString(h[:])+"\n")
			return err
		},
	}
	cmd.Flags().BoolVar(&encoded, "encoded", false, "input is already a combined encoding; verify it and print its root")
	return cmd
}

func encodeCmd() *cobra.Command {
	var outboard string
	cmd := &cobra.Command{
		Use:   "encode <input> (<output> | --outboard=<file>)",
		Short: "Produce a combined or outboard encoding of a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(&args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			outPath := outboard
			if outPath == "" {
				if len(args) < 2 {
					return errors.New("encode requires an output path or --outboard")
				}
				outPath = args[1]
			}
			out, err := openOutput(&outPath)
			if err != nil {
				return err
			}
			defer out.Close()

			if err := confirmRealFile(out, "encode output"); err != nil {
				return err
			}

			var w *bao.Writer
			if outboard != "" {
				w = bao.NewOutboardWriter(out)
			} else {
				w = bao.NewWriter(out)
			}
			if _, err := io.Copy(w, in); err != nil {
				return errors.Wrap(err, "reading input")
			}
			if _, err := w.Finish(); err != nil {
				return errors.Wrap(err, "finishing encode")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outboard, "outboard", "", "write an outboard encoding to this file instead")
	return cmd
}

func decodeCmd() *cobra.Command {
	var (
		outboard string
		start    uint64
		seeking  bool
	)
	cmd := &cobra.Command{
		Use:   "decode <hash> [input] [output]",
		Short: "Verify an encoding and write its plaintext",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeking = cmd.Flags().Changed("start")

			root, err := parseHash(args[0])
			if err != nil {
				return err
			}
			in, err := openInput(arg(args, 1))
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(arg(args, 2))
			if err != nil {
				return err
			}
			defer out.Close()

			if outboard != "" {
				outboardFile, err := openInput(&outboard)
				if err != nil {
					return err
				}
				defer outboardFile.Close()
				reader := bao.NewOutboardReader(in, outboardFile, root)
				if seeking {
					if err := confirmRealFile(in, "when seeking, decode input"); err != nil {
						return err
					}
					if err := confirmRealFile(outboardFile, "when seeking, decode input"); err != nil {
						return err
					}
					if err := reader.Seek(start); err != nil {
						return err
					}
				}
				return allowBrokenPipe(io.Copy(out, reader))
			}

			reader := bao.NewReader(in, root)
			if seeking {
				if err := confirmRealFile(in, "when seeking, decode input"); err != nil {
					return err
				}
				if err := reader.Seek(start); err != nil {
					return err
				}
			}
			return allowBrokenPipe(io.Copy(out, reader))
		},
	}
	cmd.Flags().StringVar(&outboard, "outboard", "", "read parent nodes from this file instead of the combined input")
	cmd.Flags().Uint64Var(&start, "start", 0, "seek to this content offset before decoding")
	return cmd
}

func sliceCmd() *cobra.Command {
	var outboard string
	cmd := &cobra.Command{
		Use:   "slice <start> <len> [input] [output]",
		Short: "Extract a self-contained slice covering a byte range",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, length, err := parseStartLen(args[0], args[1])
			if err != nil {
				return err
			}
			in, err := openInput(arg(args, 2))
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(arg(args, 3))
			if err != nil {
				return err
			}
			defer out.Close()

			if err := confirmRealFile(in, "slicing input"); err != nil {
				return err
			}
			inSeeker, ok := in.(io.ReadSeeker)
			if !ok {
				return errors.New("slicing input must be seekable")
			}

			var slice io.Reader
			if outboard != "" {
				outboardFile, err := openInput(&outboard)
				if err != nil {
					return err
				}
				defer outboardFile.Close()
				if err := confirmRealFile(outboardFile, "slicing input"); err != nil {
					return err
				}
				outboardSeeker, ok := outboardFile.(io.ReadSeeker)
				if !ok {
					return errors.New("outboard input must be seekable")
				}
				slice, err = bao.NewOutboardSliceExtractor(inSeeker, outboardSeeker, start, length)
				if err != nil {
					return err
				}
			} else {
				slice, err = bao.NewSliceExtractor(inSeeker, start, length)
				if err != nil {
					return err
				}
			}
			_, err = io.Copy(out, slice)
			return err
		},
	}
	cmd.Flags().StringVar(&outboard, "outboard", "", "read parent nodes from this file instead of the combined input")
	return cmd
}

func decodeSliceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode-slice <hash> <start> <len> [input] [output]",
		Short: "Verify a slice and write its plaintext",
		Args:  cobra.RangeArgs(3, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := parseHash(args[0])
			if err != nil {
				return err
			}
			start, length, err := parseStartLen(args[1], args[2])
			if err != nil {
				return err
			}
			in, err := openInput(arg(args, 3))
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := openOutput(arg(args, 4))
			if err != nil {
				return err
			}
			defer out.Close()

			reader := bao.NewSliceReader(in, root, start, length)
			return allowBrokenPipe(io.Copy(out, reader))
		},
	}
	return cmd
}

func arg(args []string, i int) *string {
	if i < len(args) {
		return &args[i]
	}
	return nil
}

func parseHash(s string) (bao.Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return bao.Hash{}, errors.New("invalid hex hash")
	}
	if len(raw) != bao.HashSize {
		return bao.Hash{}, errors.New("wrong length hash")
	}
	var h bao.Hash
	copy(h[:], raw)
	return h, nil
}

func parseStartLen(startArg, lenArg string) (uint64, uint64, error) {
	start, err := parseUint(startArg)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid start")
	}
	length, err := parseUint(lenArg)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid len")
	}
	return start, length, nil
}

func parseUint(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscan(s, &n)
	return n, err
}

// allowBrokenPipe swallows a broken pipe error from a decode copy, the same
// way the original CLI tolerates piping decoded output into something like
// `head -c 100`. Encoding errors are never swallowed this way: a truncated
// encode is almost never what the caller wanted.
func allowBrokenPipe(_ int64, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, os.ErrClosed) || stderrors.Is(err, syscall.EPIPE) {
		return nil
	}
	return err
}

func confirmRealFile(f *os.File, name string) error {
	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat %s", name)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("%s must be a real file", name)
	}
	return nil
}

func openInput(path *string) (*os.File, error) {
	if path == nil || *path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(*path)
	if err != nil {
		return nil, errors.Wrap(err, "opening input")
	}
	return f, nil
}

func openOutput(path *string) (*os.File, error) {
	if path == nil || *path == "-" {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(*path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening output")
	}
	return f, nil
}
