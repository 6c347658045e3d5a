package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ruslano69/eavsql/pkg/export"
)

func newExportCommand(opts *RootOptions) *cobra.Command {
	var format, out, s3Key string
	var compress bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of the collection",
		Long: `Write every object of the collection as JSON lines (optionally zstd
compressed) or as an XLSX sheet. With --s3-key the snapshot is uploaded to the
bucket from the export.s3 config section.`,
		Args: cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			ctx := cmd.Context()
			if format != "jsonl" && format != "xlsx" {
				return fmt.Errorf("unsupported format %q (use jsonl or xlsx)", format)
			}
			if !cmd.Flags().Changed("compress") {
				compress = s.cfg.Export.Compress
			}

			var w io.Writer
			var file *os.File
			switch {
			case out == "-":
				if s3Key != "" {
					return errors.New("--s3-key cannot be used with stdout output")
				}
				w = cmd.OutOrStdout()
			case out != "":
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				file, w = f, f
			case s3Key != "":
				f, err := os.CreateTemp("", "eavctl-export-*")
				if err != nil {
					return fmt.Errorf("failed to create temp file: %w", err)
				}
				defer os.Remove(f.Name())
				defer f.Close()
				file, w = f, f
			default:
				return errors.New("--out or --s3-key is required")
			}

			exp := export.New(s.store,
				export.WithLogger(s.logger),
				export.WithCompressLevel(s.cfg.Export.CompressLevel),
			)

			var count int
			if format == "xlsx" {
				n, err := exp.WriteXLSX(ctx, w)
				if err != nil {
					return err
				}
				count = n
			} else {
				sum, err := exp.WriteJSONL(ctx, w, compress)
				if err != nil {
					return err
				}
				count = sum.Count
				s.logger.Info().Str("checksum", sum.Checksum).Msg("snapshot checksum")
			}
			s.logger.Info().Int("objects", count).Str("format", format).Msg("export finished")

			if s3Key == "" {
				return nil
			}
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return err
			}
			uploader, err := export.NewS3Uploader(ctx, s.cfg.Export.S3)
			if err != nil {
				return err
			}
			location, err := uploader.UploadS3(ctx, "", s3Key, file)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), location)
			return nil
		}),
	}
	cmd.Flags().StringVar(&format, "format", "jsonl", "snapshot format: jsonl or xlsx")
	cmd.Flags().StringVar(&out, "out", "", "output file, - for stdout")
	cmd.Flags().BoolVar(&compress, "compress", true, "zstd-compress jsonl output (default from config)")
	cmd.Flags().StringVar(&s3Key, "s3-key", "", "upload the snapshot under this key")
	return cmd
}

func newImportCommand(opts *RootOptions) *cobra.Command {
	var in string
	var compressed bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore objects from a JSON lines snapshot",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, s *session, _ []string) error {
			var r io.Reader
			switch in {
			case "":
				return errors.New("--in is required")
			case "-":
				r = cmd.InOrStdin()
			default:
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", in, err)
				}
				defer f.Close()
				r = f
			}
			if !cmd.Flags().Changed("compressed") {
				compressed = strings.HasSuffix(in, ".zst")
			}

			sum, err := export.New(s.store, export.WithLogger(s.logger)).ImportJSONL(cmd.Context(), r, compressed)
			if err != nil {
				return err
			}
			s.logger.Info().Int("objects", sum.Count).Str("checksum", sum.Checksum).Msg("import finished")
			fmt.Fprintln(cmd.OutOrStdout(), sum.Count)
			return nil
		}),
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot file, - for stdin")
	cmd.Flags().BoolVar(&compressed, "compressed", false, "input is zstd-compressed (default: by .zst suffix)")
	return cmd
}
