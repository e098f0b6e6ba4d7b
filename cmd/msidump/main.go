// Command msidump dumps every table of an MSI package as text, and can
// verify that every table survives a Flush/WriteTo round trip (reporting
// whether the round-tripped file is byte-for-byte identical; individual
// stream contents are not compared), or write an xz-compressed copy of
// the package file for storage.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	msigo "github.com/FocuswithJustin/msigo"
)

// CLI is msidump's entire command surface.
type CLI struct {
	Path   string `arg:"" help:"Path to an MSI package." type:"existingfile"`
	Verify bool   `help:"Round-trip the package through Flush/WriteTo and report whether the bytes match."`
	Pack   string `help:"Write an xz-compressed copy of the package to this path." type:"path"`
}

var cli CLI

func (c *CLI) Run() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return err
	}
	pkg, err := msigo.Open(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open %s: %w", c.Path, err)
	}

	names := pkg.TableNames()
	sort.Strings(names)
	for _, name := range names {
		if err := dumpTable(pkg, name); err != nil {
			return err
		}
	}

	if c.Verify {
		if err := verifyRoundTrip(pkg, data); err != nil {
			return err
		}
	}
	if c.Pack != "" {
		if err := packXZ(data, c.Pack); err != nil {
			return err
		}
	}
	return nil
}

func dumpTable(pkg *msigo.Package, name string) error {
	tbl, err := pkg.Table(name)
	if err != nil {
		return err
	}
	rows, err := pkg.SelectRows(msigo.SelectAll(name))
	if err != nil {
		return err
	}

	fmt.Printf("== %s (%d row(s)) ==\n", name, len(rows))
	cols := tbl.Columns()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name()
	}
	fmt.Println(strings.Join(header, "\t"))
	for _, row := range rows {
		strs := make([]string, len(row))
		for i, v := range row {
			strs[i] = v.String()
		}
		fmt.Println(strings.Join(strs, "\t"))
	}
	fmt.Println()
	return nil
}

func verifyRoundTrip(pkg *msigo.Package, original []byte) error {
	if err := pkg.Flush(); err != nil {
		return fmt.Errorf("verify: flush: %w", err)
	}
	var buf bytes.Buffer
	if _, err := pkg.WriteTo(&buf); err != nil {
		return fmt.Errorf("verify: write: %w", err)
	}

	reopened, err := msigo.Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("verify: reopen round-tripped package: %w", err)
	}
	for _, name := range pkg.TableNames() {
		if !reopened.HasTable(name) {
			return fmt.Errorf("verify: table %s missing after round trip", name)
		}
	}

	originalHash := blake3.Sum256(original)
	roundTrippedHash := blake3.Sum256(buf.Bytes())
	fmt.Printf("original  blake3: %s\n", hex.EncodeToString(originalHash[:]))
	fmt.Printf("roundtrip blake3: %s\n", hex.EncodeToString(roundTrippedHash[:]))
	if originalHash == roundTrippedHash {
		fmt.Println("verify: byte-for-byte identical")
	} else {
		fmt.Println("verify: bytes differ (this is expected unless the source file was produced by this library)")
	}
	return nil
}

func packXZ(data []byte, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("pack: %w", err)
	}
	fmt.Printf("packed %d byte(s) to %s\n", len(data), outPath)
	return nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("msidump"),
		kong.Description("Dumps an MSI package's tables, and can verify or pack it."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
