// Package radio 管理网络电台的播放状态
package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fullscreen-overlay/internal/store"
)

// ErrStationRange 电台索引越界
var ErrStationRange = errors.New("station index out of range")

// ErrVolumeRange 音量越界
var ErrVolumeRange = errors.New("volume out of range 0-100")

// Station 电台条目
type Station struct {
	Name string
	URL  string
}

// SettingsStore persists the volume across runs.
type SettingsStore interface {
	GetInt(ctx context.Context, category, key string, def int) (int, error)
	SetInt(ctx context.Context, category, key string, v int) error
}

// Options 电台服务配置
type Options struct {
	Stations      []Station
	DefaultVolume int
	Player        Player
	Store         SettingsStore // 可为 nil
	OnCurrent     func(index int)
	Logger        *slog.Logger
}

// Service owns the station list, volume and the single active playback.
type Service struct {
	player    Player
	settings  SettingsStore
	onCurrent func(int)
	log       *slog.Logger

	mu       sync.Mutex
	stations []Station
	volume   int
	current  int
	playback Playback
	rich     bool
}

// NewService 创建电台服务
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	vol := opts.DefaultVolume
	if vol < 0 || vol > 100 {
		vol = 50
	}
	return &Service{
		player:    opts.Player,
		settings:  opts.Store,
		onCurrent: opts.OnCurrent,
		log:       opts.Logger,
		stations:  append([]Station(nil), opts.Stations...),
		volume:    vol,
		current:   -1,
	}
}

// Load restores the persisted volume. A missing store keeps the default.
func (s *Service) Load(ctx context.Context) error {
	if s.settings == nil {
		return nil
	}
	s.mu.Lock()
	def := s.volume
	s.mu.Unlock()

	v, err := s.settings.GetInt(ctx, store.CategoryRadio, store.KeyVolume, def)
	if err != nil {
		return fmt.Errorf("load radio volume: %w", err)
	}
	if v < 0 || v > 100 {
		v = def
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

// SetStations replaces the station list. A playing stream keeps playing only
// if its index still exists.
func (s *Service) SetStations(stations []Station) {
	s.mu.Lock()
	s.stations = append([]Station(nil), stations...)
	stale := s.playback != nil && s.current >= len(s.stations)
	s.mu.Unlock()

	if stale {
		_ = s.Stop()
	}
}

// Names 返回电台名称列表
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.stations))
	for i, st := range s.stations {
		names[i] = st.Name
	}
	return names
}

// Volume 当前音量
func (s *Service) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Current returns the playing station index.
func (s *Service) Current() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil {
		return -1, false
	}
	return s.current, true
}

// Playing 是否正在播放
func (s *Service) Playing() bool {
	_, ok := s.Current()
	return ok
}

// RichControlAttached reports whether an external media controller owns
// playback. Such playback outlives the injected target.
func (s *Service) RichControlAttached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rich
}

// SetRichControl 标记是否有外部媒体控制接管
func (s *Service) SetRichControl(attached bool) {
	s.mu.Lock()
	s.rich = attached
	s.mu.Unlock()
}

// Select starts station index, replacing whatever is playing.
func (s *Service) Select(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.stations) {
		n := len(s.stations)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrStationRange, index, n)
	}
	if s.player == nil {
		s.mu.Unlock()
		return ErrNoPlayer
	}
	station := s.stations[index]
	volume := s.volume
	old := s.playback
	s.playback = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Stop(); err != nil {
			s.log.Warn("⚠️ 停止上一个电台失败", "error", err)
		}
	}

	pb, err := s.player.Play(station.URL, volume)
	if err != nil {
		return fmt.Errorf("play %s: %w", station.Name, err)
	}

	s.mu.Lock()
	s.playback = pb
	s.current = index
	s.mu.Unlock()
	go s.watch(pb)

	s.log.Info("📻 开始播放电台", "index", index, "name", station.Name)
	if s.onCurrent != nil {
		s.onCurrent(index)
	}
	return nil
}

// SetVolume stores v and applies it to the running stream when the player
// supports it. The bool reports whether it was applied live.
func (s *Service) SetVolume(v int) (bool, error) {
	if v < 0 || v > 100 {
		return false, fmt.Errorf("%w: %d", ErrVolumeRange, v)
	}
	s.mu.Lock()
	s.volume = v
	pb := s.playback
	s.mu.Unlock()

	s.persist(store.KeyVolume, v)
	if pb == nil {
		return false, nil
	}
	return pb.SetVolume(v), nil
}

// Stop 停止播放；未播放时无操作
func (s *Service) Stop() error {
	s.mu.Lock()
	pb := s.playback
	s.playback = nil
	s.current = -1
	s.mu.Unlock()

	if pb == nil {
		return nil
	}
	s.log.Info("⏹️ 停止播放电台")
	return pb.Stop()
}

// watch clears the state when the player exits on its own.
func (s *Service) watch(pb Playback) {
	<-pb.Done()
	s.mu.Lock()
	if s.playback == pb {
		s.playback = nil
		s.current = -1
		s.log.Info("📻 播放器已退出")
	}
	s.mu.Unlock()
}

func (s *Service) persist(key string, v int) {
	if s.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.settings.SetInt(ctx, store.CategoryRadio, key, v); err != nil {
		s.log.Warn("⚠️ 保存电台设置失败", "key", key, "error", err)
	}
}
