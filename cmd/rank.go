package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voltswap/voltswap/config"
	"github.com/voltswap/voltswap/core/availability"
	"github.com/voltswap/voltswap/core/geo"
	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/ranker"
	"github.com/voltswap/voltswap/infra/mqtt"
)

var (
	rankLat      float64
	rankLng      float64
	rankRadius   float64
	rankSort     string
	rankWaitSecs int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Listen to the station feed and print a one-shot ranking",
	RunE:  rankStations,
}

func init() {
	rankCmd.Flags().Float64Var(&rankLat, "lat", 0, "origin latitude")
	rankCmd.Flags().Float64Var(&rankLng, "lng", 0, "origin longitude")
	rankCmd.Flags().Float64Var(&rankRadius, "radius", 0, "search radius in km")
	rankCmd.Flags().StringVar(&rankSort, "sort", "distance", "sort mode: distance or rating")
	rankCmd.Flags().IntVar(&rankWaitSecs, "wait", 3, "seconds to collect station feed messages")
	rootCmd.AddCommand(rankCmd)
}

func rankStations(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	index := geo.NewIndex()
	tracker := availability.New(nil)
	feed, err := mqtt.NewStationFeed(cfg.MQTT, index, tracker, nil)
	if err != nil {
		return fmt.Errorf("station feed: %w", err)
	}
	defer feed.Disconnect()

	time.Sleep(time.Duration(rankWaitSecs) * time.Second)
	if index.Len() == 0 {
		return fmt.Errorf("no stations heard on %s", cfg.MQTT.StationTopic)
	}

	q := ranker.Query{RadiusKm: rankRadius, Sort: ranker.SortMode(rankSort)}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		q.Origin = &model.Location{Lat: rankLat, Lng: rankLng}
	}
	ranked := ranker.New(index, tracker, cfg.Ranker).Rank(q)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ranked)
}
