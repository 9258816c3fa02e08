package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mmcdole/mediacenter/internal/domain"
)

// FFProbe runs the ffprobe binary and decodes its JSON report.
type FFProbe struct {
	Command string // defaults to "ffprobe"
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Channels  int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

func (f FFProbe) Probe(ctx context.Context, path string) (*domain.MediaInfo, error) {
	cmd := f.Command
	if cmd == "" {
		cmd = "ffprobe"
	}
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path)
	c.Stdout, c.Stderr = &stdout, &stderr
	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(cmd), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(cmd), err)
	}
	return ParseFFProbe(stdout.Bytes())
}

// ParseFFProbe converts an ffprobe JSON report. The first video and audio
// streams win.
func ParseFFProbe(data []byte) (*domain.MediaInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	mi := &domain.MediaInfo{}
	if name, _, _ := strings.Cut(out.Format.FormatName, ","); name != "" {
		mi.Container = name
	}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		mi.RunTime = int(d + 0.5)
	}
	if br, err := strconv.Atoi(out.Format.BitRate); err == nil {
		mi.Bitrate = br / 1000
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if mi.VideoCodec == "" {
				mi.VideoCodec = s.CodecName
				mi.Width, mi.Height = s.Width, s.Height
			}
		case "audio":
			if mi.AudioCodec == "" {
				mi.AudioCodec = s.CodecName
				mi.AudioChannels = s.Channels
			}
		}
	}
	if mi.VideoCodec == "" && mi.AudioCodec == "" {
		return nil, errors.New("no audio or video streams found")
	}
	return mi, nil
}
