package fits

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// reserved keywords are emitted from the data shape and never copied from user cards.
var reserved = map[string]bool{
	"SIMPLE": true, "XTENSION": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true,
	"NAXIS2": true, "EXTEND": true, "PCOUNT": true, "GCOUNT": true, "END": true,
}

// HDU is one header-data unit. Data is nil for a header-only HDU.
type HDU struct {
	Header *Header
	Data   *mat.Dense
}

// HDUList is a primary HDU followed by image extensions.
type HDUList []*HDU

// WriteFile writes the list to path, replacing any existing file.
func WriteFile(path string, hdus HDUList) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := hdus.WriteTo(w); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteTo encodes the list. The first HDU is written as the primary HDU.
func (l HDUList) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, hdu := range l {
		n, err := writeHDU(w, hdu, i == 0)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeHDU(w io.Writer, hdu *HDU, primary bool) (int64, error) {
	var buf bytes.Buffer
	var rows, cols int
	if hdu.Data != nil {
		rows, cols = hdu.Data.Dims()
	}
	if primary {
		buf.WriteString(formatCard(Card{Key: "SIMPLE", Value: true, Comment: "conforms to FITS standard"}))
	} else {
		buf.WriteString(formatCard(Card{Key: "XTENSION", Value: "IMAGE", Comment: "image extension"}))
	}
	if hdu.Data == nil {
		buf.WriteString(formatCard(Card{Key: "BITPIX", Value: 8}))
		buf.WriteString(formatCard(Card{Key: "NAXIS", Value: 0}))
	} else {
		buf.WriteString(formatCard(Card{Key: "BITPIX", Value: -64, Comment: "IEEE double precision"}))
		buf.WriteString(formatCard(Card{Key: "NAXIS", Value: 2}))
		buf.WriteString(formatCard(Card{Key: "NAXIS1", Value: cols}))
		buf.WriteString(formatCard(Card{Key: "NAXIS2", Value: rows}))
	}
	if primary {
		buf.WriteString(formatCard(Card{Key: "EXTEND", Value: true}))
	} else {
		buf.WriteString(formatCard(Card{Key: "PCOUNT", Value: 0}))
		buf.WriteString(formatCard(Card{Key: "GCOUNT", Value: 1}))
	}
	for _, c := range hdu.Header.Cards() {
		if reserved[strings.ToUpper(c.Key)] {
			continue
		}
		buf.WriteString(formatCard(c))
	}
	buf.WriteString(padRight("END", cardSize))
	pad(&buf, ' ')

	if hdu.Data != nil {
		var word [8]byte
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				binary.BigEndian.PutUint64(word[:], math.Float64bits(hdu.Data.At(r, c)))
				buf.Write(word[:])
			}
		}
		pad(&buf, 0)
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func pad(buf *bytes.Buffer, b byte) {
	if rem := buf.Len() % blockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{b}, blockSize-rem))
	}
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return fmt.Sprintf("%20s", "T")
		}
		return fmt.Sprintf("%20s", "F")
	case int:
		return fmt.Sprintf("%20d", x)
	case int64:
		return fmt.Sprintf("%20d", x)
	case float64:
		s := strconv.FormatFloat(x, 'G', -1, 64)
		if !strings.ContainsAny(s, ".EN") {
			s += ".0"
		}
		return fmt.Sprintf("%20s", s)
	case string:
		s := strings.ReplaceAll(x, "'", "''")
		return "'" + padRight(s, max(8, len(s))) + "'"
	default:
		return formatValue(fmt.Sprint(x))
	}
}

func formatCard(c Card) string {
	key := strings.ToUpper(c.Key)
	var line string
	if len(key) > 8 {
		line = "HIERARCH " + key + " = " + strings.TrimLeft(formatValue(c.Value), " ")
	} else {
		line = padRight(key, 8) + "= " + formatValue(c.Value)
	}
	if c.Comment != "" {
		line += " / " + c.Comment
	}
	return padRight(line, cardSize)
}

// ReadFile reads a file written by WriteFile.
func ReadFile(path string) (HDUList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// Read decodes HDUs until EOF. Only BITPIX -64 data and header-only HDUs are supported.
func Read(r io.Reader) (HDUList, error) {
	var out HDUList
	for {
		hdr, err := readHeader(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		hdu := &HDU{Header: hdr}
		naxis, _ := hdr.Float("NAXIS")
		if naxis == 2 {
			bitpix, _ := hdr.Float("BITPIX")
			if bitpix != -64 {
				return nil, fmt.Errorf("unsupported BITPIX %v", bitpix)
			}
			cols, _ := hdr.Float("NAXIS1")
			rows, _ := hdr.Float("NAXIS2")
			n := int(rows) * int(cols)
			raw := make([]byte, n*8)
			if _, err := io.ReadFull(r, raw); err != nil {
				return nil, fmt.Errorf("reading data: %w", err)
			}
			data := make([]float64, n)
			for i := range data {
				data[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[i*8:]))
			}
			hdu.Data = mat.NewDense(int(rows), int(cols), data)
			if rem := (n * 8) % blockSize; rem != 0 {
				if _, err := io.CopyN(io.Discard, r, int64(blockSize-rem)); err != nil {
					return nil, fmt.Errorf("reading padding: %w", err)
				}
			}
		}
		out = append(out, hdu)
	}
}

func readHeader(r io.Reader) (*Header, error) {
	h := NewHeader()
	block := make([]byte, blockSize)
	first := true
	for {
		if _, err := io.ReadFull(r, block); err != nil {
			if first && err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading header: %w", err)
		}
		first = false
		for i := 0; i < blockSize; i += cardSize {
			line := string(block[i : i+cardSize])
			key, value, ok := parseCard(line)
			if key == "END" {
				return h, nil
			}
			if ok {
				h.Set(key, value, "")
			}
		}
	}
}

func parseCard(line string) (string, any, bool) {
	if strings.HasPrefix(line, "HIERARCH ") {
		rest := strings.TrimPrefix(line, "HIERARCH ")
		eq := strings.Index(rest, "=")
		if eq < 0 {
			return "", nil, false
		}
		return strings.TrimSpace(rest[:eq]), parseValue(rest[eq+1:]), true
	}
	key := strings.TrimSpace(line[:8])
	if key == "END" {
		return key, nil, false
	}
	if len(line) < 10 || line[8:10] != "= " {
		return key, nil, false
	}
	return key, parseValue(line[10:]), true
}

func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "'") {
		end := strings.Index(s[1:], "'")
		for end >= 0 && end+2 < len(s) && s[end+2] == '\'' {
			next := strings.Index(s[end+3:], "'")
			if next < 0 {
				end = -1
				break
			}
			end += next + 2
		}
		if end < 0 {
			return strings.TrimRight(s[1:], " ")
		}
		return strings.ReplaceAll(strings.TrimRight(s[1:end+1], " "), "''", "'")
	}
	if slash := strings.Index(s, "/"); slash >= 0 {
		s = strings.TrimSpace(s[:slash])
	}
	switch s {
	case "T":
		return true
	case "F":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
