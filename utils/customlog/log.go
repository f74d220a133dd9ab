package customlog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Type uint8

var (
	Success    Type = 0x00
	Failure    Type = 0x01
	Processing Type = 0x02
	Info       Type = 0x03
	Warning    Type = 0x04
	Finished   Type = 0x05
)

type TypesDetails struct {
	symbol string
	color  *color.Color
}

var logTypeMap = map[Type]TypesDetails{
	Success:    {symbol: "[+]", color: color.New(color.Bold, color.FgGreen)},
	Failure:    {symbol: "[-]", color: color.New(color.Bold, color.FgRed)},
	Processing: {symbol: "[/]", color: color.New(color.Bold, color.FgBlue)},
	Info:       {symbol: "[i]", color: color.New(color.Bold, color.FgCyan)},
	Warning:    {symbol: "[!]", color: color.New(color.Bold, color.FgYellow)},
	Finished:   {symbol: "[*]", color: color.New(color.Bold, color.FgMagenta)},
}

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects log lines. Harvest output goes to stdout when "-" is
// the target, so logs default to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

func Printf(logType Type, format string, v ...interface{}) {
	t := logTypeMap[logType]
	currentTime := time.Now()
	mu.Lock()
	defer mu.Unlock()
	t.color.Fprintf(out, t.symbol+" "+currentTime.Format("2006-01-02 15:04:05")+" "+format, v...)
}

func Println(logType Type, v ...interface{}) {
	t := logTypeMap[logType]
	mu.Lock()
	defer mu.Unlock()
	t.color.Fprint(out, t.symbol+" "+time.Now().Format("2006-01-02 15:04:05")+" ")
	t.color.Fprintln(out, v...)
}

// GetColor paints s in the color of logType.
func GetColor(logType Type, s string) string {
	return logTypeMap[logType].color.Sprint(s)
}
