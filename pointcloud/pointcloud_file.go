package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// PCDTypeFromString parses "ascii" or "binary".
func PCDTypeFromString(s string) (PCDType, error) {
	switch strings.ToLower(s) {
	case "ascii":
		return PCDAscii, nil
	case "binary":
		return PCDBinary, nil
	default:
		return PCDAscii, errors.Errorf("unknown pcd data type %q", s)
	}
}

func pcdTypeChar(d Datatype) (string, error) {
	switch d {
	case Int8, Int16, Int32:
		return "I", nil
	case Uint8, Uint16, Uint32:
		return "U", nil
	case Float32, Float64:
		return "F", nil
	}
	return "", errors.Errorf("datatype %d has no pcd representation", d)
}

// ToPCD writes the cloud as a PCD v0.7 file. The cloud keeps its organization: WIDTH and HEIGHT are
// those of the cloud and every point is written, including NaN ones.
func ToPCD(cloud *Cloud, out io.Writer, outputType PCDType) error {
	names := make([]string, 0, len(cloud.Fields))
	sizes := make([]string, 0, len(cloud.Fields))
	types := make([]string, 0, len(cloud.Fields))
	counts := make([]string, 0, len(cloud.Fields))
	for _, f := range cloud.Fields {
		typeChar, err := pcdTypeChar(f.Datatype)
		if err != nil {
			return err
		}
		names = append(names, f.Name)
		sizes = append(sizes, strconv.Itoa(f.Datatype.Size()))
		types = append(types, typeChar)
		counts = append(counts, strconv.Itoa(f.Count))
	}

	var data string
	switch outputType {
	case PCDBinary:
		data = "binary"
	case PCDAscii:
		data = "ascii"
	default:
		return errors.Errorf("unsupported pcd type %d", outputType)
	}

	_, err := fmt.Fprintf(out, "VERSION .7\n"+
		"FIELDS %s\n"+
		"SIZE %s\n"+
		"TYPE %s\n"+
		"COUNT %s\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n"+
		"DATA %s\n",
		strings.Join(names, " "),
		strings.Join(sizes, " "),
		strings.Join(types, " "),
		strings.Join(counts, " "),
		cloud.Width,
		cloud.Height,
		cloud.Size(),
		data,
	)
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType)
}

func writePCDData(cloud *Cloud, out io.Writer, pcdtype PCDType) error {
	order := cloud.byteOrder()
	buf := make([]byte, 0, cloud.PointStep)
	values := make([]string, 0, len(cloud.Fields))
	for row := 0; row < cloud.Height; row++ {
		for col := 0; col < cloud.Width; col++ {
			base := row*cloud.RowStep + col*cloud.PointStep
			buf = buf[:0]
			values = values[:0]
			for _, f := range cloud.Fields {
				size := f.Datatype.Size()
				for c := 0; c < f.Count; c++ {
					raw := cloud.Data[base+f.Offset+c*size : base+f.Offset+(c+1)*size]
					switch pcdtype {
					case PCDBinary:
						// pcd binary data is little endian
						buf = appendLittleEndian(buf, raw, order)
					case PCDAscii:
						values = append(values, formatPCDValue(raw, f.Datatype, order))
					}
				}
			}
			var err error
			switch pcdtype {
			case PCDBinary:
				_, err = out.Write(buf)
			case PCDAscii:
				_, err = fmt.Fprintln(out, strings.Join(values, " "))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func appendLittleEndian(buf, raw []byte, order binary.ByteOrder) []byte {
	if order == binary.LittleEndian {
		return append(buf, raw...)
	}
	for i := len(raw) - 1; i >= 0; i-- {
		buf = append(buf, raw[i])
	}
	return buf
}

func formatPCDValue(raw []byte, d Datatype, order binary.ByteOrder) string {
	switch d {
	case Int8:
		return strconv.Itoa(int(int8(raw[0])))
	case Uint8:
		return strconv.Itoa(int(raw[0]))
	case Int16:
		return strconv.Itoa(int(int16(order.Uint16(raw))))
	case Uint16:
		return strconv.Itoa(int(order.Uint16(raw)))
	case Int32:
		return strconv.FormatInt(int64(int32(order.Uint32(raw))), 10)
	case Uint32:
		return strconv.FormatUint(uint64(order.Uint32(raw)), 10)
	case Float32:
		return formatPCDFloat(float64(math.Float32frombits(order.Uint32(raw))), 32)
	case Float64:
		return formatPCDFloat(math.Float64frombits(order.Uint64(raw)), 64)
	}
	return "0"
}

func formatPCDFloat(f float64, bitSize int) string {
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, bitSize)
}

// WriteToPCDFile writes the cloud to a new file at path.
func WriteToPCDFile(cloud *Cloud, path string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}
