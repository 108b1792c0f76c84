package lightcurve

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	fitsRecordLen = 80
	fitsBlockLen  = 2880

	// Largest image accepted, 2^28 pixels (16384x16384).
	maxFitsPixels = 1 << 28

	mjdOffset = 2400000.5
	// Julian date of the Unix epoch.
	unixEpochJD = 2440587.5
)

// FitsMetadata holds parsed FITS header key-value pairs.
type FitsMetadata struct {
	Headers map[string]string
}

// NewFitsMetadata creates an empty FitsMetadata.
func NewFitsMetadata() *FitsMetadata {
	return &FitsMetadata{Headers: make(map[string]string)}
}

func (m *FitsMetadata) GetString(key string) string {
	if v, ok := m.Headers[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (m *FitsMetadata) GetDouble(key string) (float64, bool) {
	v, ok := m.Headers[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// GetDateTime parses ISO-8601 timestamps as written by capture software,
// with or without a zone suffix and fractional seconds.
func (m *FitsMetadata) GetDateTime(key string) (time.Time, bool) {
	v, ok := m.Headers[strings.ToUpper(key)]
	if !ok {
		return time.Time{}, false
	}
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (m *FitsMetadata) ObjectName() string { return m.GetString("OBJECT") }
func (m *FitsMetadata) Filter() string     { return m.GetString("FILTER") }

func (m *FitsMetadata) ExposureTime() (float64, bool) {
	if v, ok := m.GetDouble("EXPTIME"); ok {
		return v, true
	}
	return m.GetDouble("EXPOSURE")
}

// JulianDate returns the observation time of the frame. JD is preferred,
// then JD-OBS, MJD-OBS and finally DATE-OBS.
func (m *FitsMetadata) JulianDate() (float64, bool) {
	if jd, ok := m.GetDouble("JD"); ok {
		return jd, true
	}
	if jd, ok := m.GetDouble("JD-OBS"); ok {
		return jd, true
	}
	if mjd, ok := m.GetDouble("MJD-OBS"); ok {
		return mjd + mjdOffset, true
	}
	if t, ok := m.GetDateTime("DATE-OBS"); ok {
		return TimeToJD(t), true
	}
	return 0, false
}

// TimeToJD converts a UTC time to a Julian date.
func TimeToJD(t time.Time) float64 {
	return unixEpochJD + float64(t.UnixNano())/float64(24*time.Hour)
}

// FitsImageData holds the physical pixel values of a FITS primary HDU.
type FitsImageData struct {
	Pixels   []float32
	Width    int
	Height   int
	Metadata *FitsMetadata
}

// Mat copies the pixels into a new Mat.
func (d *FitsImageData) Mat() Mat {
	return NewMatFromFloat32(d.Height, d.Width, d.Pixels)
}

// ReadFits reads FITS headers and pixel data from a file.
func ReadFits(filePath string) (*FitsImageData, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(bufio.NewReader(f), false)
}

// ReadFitsMetadataOnly reads only FITS headers without loading pixel data.
func ReadFitsMetadataOnly(filePath string) (*FitsImageData, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readFitsFromReader(f, true)
}

// ReadFitsFromBytes reads FITS headers and pixel data from a byte slice.
func ReadFitsFromBytes(data []byte) (*FitsImageData, error) {
	return readFitsFromReader(bytes.NewReader(data), false)
}

func readFitsFromReader(r io.Reader, skipPixelData bool) (*FitsImageData, error) {
	var bitpix, naxis, width, height int
	bzero := 0.0
	bscale := 1.0
	headerDone := false
	metadata := NewFitsMetadata()

	recordBuf := make([]byte, fitsRecordLen)

	for !headerDone {
		for i := 0; i < fitsBlockLen/fitsRecordLen; i++ {
			if _, err := io.ReadFull(r, recordBuf); err != nil {
				return nil, fmt.Errorf("reading FITS header record: %w", err)
			}
			record := string(recordBuf)
			keyword := strings.TrimSpace(record[:8])

			if keyword == "END" {
				headerDone = true
				remaining := 35 - i
				if remaining > 0 {
					if _, err := io.CopyN(io.Discard, r, int64(remaining*fitsRecordLen)); err != nil {
						return nil, fmt.Errorf("skipping FITS header padding: %w", err)
					}
				}
				break
			}

			if record[8] == '=' && record[9] == ' ' {
				rawValue := strings.TrimSpace(splitFitsComment(record[10:]))
				parsedValue := parseFitsValue(rawValue)

				if keyword != "" && parsedValue != "" {
					metadata.Headers[strings.ToUpper(keyword)] = parsedValue
				}

				switch keyword {
				case "BITPIX":
					bitpix, _ = strconv.Atoi(rawValue)
				case "NAXIS":
					naxis, _ = strconv.Atoi(rawValue)
				case "NAXIS1":
					width, _ = strconv.Atoi(rawValue)
				case "NAXIS2":
					height, _ = strconv.Atoi(rawValue)
				case "BZERO":
					bzero, _ = strconv.ParseFloat(rawValue, 64)
				case "BSCALE":
					bscale, _ = strconv.ParseFloat(rawValue, 64)
				}
			}
		}
	}

	if naxis < 2 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", naxis, width, height)
	}
	if width > maxFitsPixels/height {
		return nil, fmt.Errorf("invalid FITS: %dx%d image exceeds %d pixels", width, height, maxFitsPixels)
	}

	if skipPixelData {
		return &FitsImageData{
			Width:    width,
			Height:   height,
			Metadata: metadata,
		}, nil
	}

	bytesPerPixel := intAbs(bitpix) / 8
	switch bitpix {
	case 8, 16, 32, -32, -64:
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}

	numPixels := width * height
	rawBytes := make([]byte, numPixels*bytesPerPixel)
	if _, err := io.ReadFull(r, rawBytes); err != nil {
		return nil, fmt.Errorf("reading BITPIX=%d pixel data: %w", bitpix, err)
	}

	// Only the first plane of a data cube is read.
	pixels := make([]float32, numPixels)
	for i := 0; i < numPixels; i++ {
		var raw float64
		switch bitpix {
		case 8:
			raw = float64(rawBytes[i])
		case 16:
			raw = float64(int16(binary.BigEndian.Uint16(rawBytes[i*2:])))
		case 32:
			raw = float64(int32(binary.BigEndian.Uint32(rawBytes[i*4:])))
		case -32:
			raw = float64(math.Float32frombits(binary.BigEndian.Uint32(rawBytes[i*4:])))
		case -64:
			raw = math.Float64frombits(binary.BigEndian.Uint64(rawBytes[i*8:]))
		}
		physicalVal := raw*bscale + bzero
		if math.IsNaN(physicalVal) || physicalVal < 0 {
			physicalVal = 0
		}
		pixels[i] = float32(physicalVal)
	}

	return &FitsImageData{
		Pixels:   pixels,
		Width:    width,
		Height:   height,
		Metadata: metadata,
	}, nil
}

// EncodeFits writes a single-plane BITPIX -32 primary HDU. Extra headers are
// written as string or numeric cards in key order.
func EncodeFits(w io.Writer, pixels []float32, width, height int, headers map[string]string) error {
	if len(pixels) != width*height {
		return fmt.Errorf("encoding FITS: %d pixels for %dx%d image", len(pixels), width, height)
	}

	var hdr bytes.Buffer
	writeCard := func(key, value string) {
		card := fmt.Sprintf("%-8s= %20s", key, value)
		if len(card) > fitsRecordLen {
			card = card[:fitsRecordLen]
		}
		hdr.WriteString(fmt.Sprintf("%-80s", card))
	}
	writeCard("SIMPLE", "T")
	writeCard("BITPIX", "-32")
	writeCard("NAXIS", "2")
	writeCard("NAXIS1", strconv.Itoa(width))
	writeCard("NAXIS2", strconv.Itoa(height))

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := headers[k]
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			v = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		writeCard(strings.ToUpper(k), v)
	}
	hdr.WriteString(fmt.Sprintf("%-80s", "END"))
	padBlock(&hdr, ' ')

	data := make([]byte, len(pixels)*4)
	for i, p := range pixels {
		binary.BigEndian.PutUint32(data[i*4:], math.Float32bits(p))
	}
	body := bytes.NewBuffer(data)
	padBlock(body, 0)

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("writing FITS header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("writing FITS data: %w", err)
	}
	return nil
}

func padBlock(b *bytes.Buffer, fill byte) {
	if rem := b.Len() % fitsBlockLen; rem != 0 {
		b.Write(bytes.Repeat([]byte{fill}, fitsBlockLen-rem))
	}
}

// splitFitsComment strips a trailing "/ comment" that is not inside a quoted string.
func splitFitsComment(value string) string {
	inQuote := false
	for i, c := range value {
		switch c {
		case '\'':
			inQuote = !inQuote
		case '/':
			if !inQuote {
				return value[:i]
			}
		}
	}
	return value
}

func parseFitsValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}
	if rawValue == "T" {
		return "True"
	}
	if rawValue == "F" {
		return "False"
	}
	if strings.HasPrefix(rawValue, "'") {
		endQuote := strings.LastIndex(rawValue, "'")
		if endQuote > 0 {
			return strings.ReplaceAll(strings.TrimRight(rawValue[1:endQuote], " "), "''", "'")
		}
		return strings.TrimLeft(strings.TrimRight(rawValue, " "), "'")
	}
	return rawValue
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
