package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"

	_ "github.com/streamcore/esparser/aac"
	_ "github.com/streamcore/esparser/ac3"
	_ "github.com/streamcore/esparser/ac4"
	_ "github.com/streamcore/esparser/avc"
	_ "github.com/streamcore/esparser/ec3"
	_ "github.com/streamcore/esparser/hevc"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type sampleRecord struct {
	Index                int   `json:"index"`
	DTS                  int64 `json:"dts"`
	CTS                  int64 `json:"cts"`
	Size                 int64 `json:"size"`
	Sync                 bool  `json:"sync"`
	NewSampleDescription bool  `json:"newSampleDescription"`
	PictureType          int   `json:"pictureType"`
	FrameType            int   `json:"frameType"`
	NALCount             int   `json:"nalCount"`
}

type dumpArgs struct {
	inFile  string
	codec   string
	cfgOut  string
	dvccOut string
}

var dump dumpArgs

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Parse an elementary-stream file and print its access-unit table and DSI record",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(dump.inFile)
		if err != nil {
			return err
		}
		defer f.Close()

		r, err := esio.NewFileReader(f)
		if err != nil {
			return err
		}

		parser, err := es.CreateParser(dump.codec, dsiCodecFor(dump.codec))
		if err != nil {
			return err
		}
		defer parser.Destroy()

		if err := parser.Init(r, 0, es.ExternalTiming{}); err != nil {
			return err
		}

		var records []sampleRecord
		for i := 0; ; i++ {
			sample, err := parser.GetSample()
			if err != nil {
				if errs.KindOf(err) == errs.KindEndOfStream {
					break
				}
				return err
			}
			records = append(records, sampleRecord{
				Index:                i,
				DTS:                  sample.DTS,
				CTS:                  sample.CTS,
				Size:                 sample.Size,
				Sync:                 sample.Flags&es.FlagSync != 0,
				NewSampleDescription: sample.Flags&es.FlagNewSampleDescription != 0,
				PictureType:          int(sample.PictureType),
				FrameType:            int(sample.FrameType),
				NALCount:             len(sample.NALs),
			})
		}

		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if dump.cfgOut != "" {
			cfg, err := parser.GetCfg()
			if err != nil {
				return err
			}
			if err := os.WriteFile(dump.cfgOut, cfg, 0644); err != nil {
				return err
			}
		}

		if dump.dvccOut != "" {
			dv, ok := parser.(interface{ GetDVCC() ([]byte, bool) })
			if !ok {
				return fmt.Errorf("dump: --dvcc-out only applies to codec hevc")
			}
			cfg, present := dv.GetDVCC()
			if !present {
				return fmt.Errorf("dump: no Dolby Vision side data observed in stream")
			}
			return os.WriteFile(dump.dvccOut, cfg, 0644)
		}
		return nil
	},
}

// dsiCodecFor maps a codec name to the DSI record family its parser
// emits, mirroring the table es.DSICodec documents.
func dsiCodecFor(codec string) es.DSICodec {
	switch codec {
	case "avc":
		return es.DSIAVCC
	case "hevc":
		return es.DSIHVCC
	case "ac4":
		return es.DSIDAC4
	case "aac":
		return es.DSIESDS
	case "ac3":
		return es.DSIDAC3
	case "ec3":
		return es.DSIDEC3
	default:
		return ""
	}
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dump.inFile, "input", "i", "", "Elementary stream file to parse")
	dumpCmd.MarkFlagRequired("input")
	dumpCmd.Flags().StringVarP(&dump.codec, "codec", "c", "", "Codec: avc, hevc, ac4, aac, ac3, ec3")
	dumpCmd.MarkFlagRequired("codec")
	dumpCmd.Flags().StringVar(&dump.cfgOut, "cfg-out", "", "Write the decoder-specific-info record to this file")
	dumpCmd.Flags().StringVar(&dump.dvccOut, "dvcc-out", "", "Write the Dolby Vision dvcC record to this file (hevc only)")
}
