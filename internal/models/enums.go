package models

import (
	"fmt"
	"strings"
)

type enumNames[T ~int] map[T]string

func (n enumNames[T]) name(v T) string {
	if s, ok := n[v]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(v))
}

func (n enumNames[T]) parse(s string) (T, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for v, name := range n {
		if name == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (n enumNames[T]) unmarshal(dst *T, text []byte) error {
	v, ok := n.parse(string(text))
	if !ok {
		return fmt.Errorf("unknown value %q", text)
	}
	*dst = v
	return nil
}

type SongType int

const (
	SongTypeOriginal SongType = iota
	SongTypeRemix
	SongTypeCover
	SongTypeOther
)

var songTypeNames = enumNames[SongType]{
	SongTypeOriginal: "ORIGINAL",
	SongTypeRemix:    "REMIX",
	SongTypeCover:    "COVER",
	SongTypeOther:    "OTHER",
}

func (t SongType) String() string {
	return songTypeNames.name(t)
}

func (t SongType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SongType) UnmarshalText(text []byte) error {
	return songTypeNames.unmarshal(t, text)
}

func ParseSongType(s string) (SongType, bool) {
	return songTypeNames.parse(s)
}

// SourceType is the platform a video is hosted on.
type SourceType int

const (
	SourceTypeYouTube SourceType = iota
	SourceTypeNiconico
	SourceTypeBilibili
)

var sourceTypeNames = enumNames[SourceType]{
	SourceTypeYouTube:  "YOUTUBE",
	SourceTypeNiconico: "NICONICO",
	SourceTypeBilibili: "BILIBILI",
}

func (t SourceType) String() string {
	return sourceTypeNames.name(t)
}

func (t SourceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SourceType) UnmarshalText(text []byte) error {
	return sourceTypeNames.unmarshal(t, text)
}

func ParseSourceType(s string) (SourceType, bool) {
	return sourceTypeNames.parse(s)
}

// SourceTypes lists every known source in display order.
func SourceTypes() []SourceType {
	return []SourceType{SourceTypeYouTube, SourceTypeNiconico, SourceTypeBilibili}
}

type ArtistType int

const (
	ArtistTypeVocaloid ArtistType = iota
	ArtistTypeCeVIO
	ArtistTypeSynthesizerV
	ArtistTypeIllustrator
	ArtistTypeCoverArtist
	ArtistTypeAnimator
	ArtistTypeProducer
	ArtistTypeOtherVocalist
	ArtistTypeOtherVoiceSynthesizer
	ArtistTypeOtherIndividual
	ArtistTypeOtherGroup
	ArtistTypeUTAU
	ArtistTypeNeutrino
	ArtistTypeVoiSona
	ArtistTypeVoiceroid
	ArtistTypeACEVirtualSinger
)

var artistTypeNames = enumNames[ArtistType]{
	ArtistTypeVocaloid:              "VOCALOID",
	ArtistTypeCeVIO:                 "CEVIO",
	ArtistTypeSynthesizerV:          "SYNTHESIZER_V",
	ArtistTypeIllustrator:           "ILLUSTRATOR",
	ArtistTypeCoverArtist:           "COVER_ARTIST",
	ArtistTypeAnimator:              "ANIMATOR",
	ArtistTypeProducer:              "PRODUCER",
	ArtistTypeOtherVocalist:         "OTHER_VOCALIST",
	ArtistTypeOtherVoiceSynthesizer: "OTHER_VOICE_SYNTHESIZER",
	ArtistTypeOtherIndividual:       "OTHER_INDIVIDUAL",
	ArtistTypeOtherGroup:            "OTHER_GROUP",
	ArtistTypeUTAU:                  "UTAU",
	ArtistTypeNeutrino:              "NEUTRINO",
	ArtistTypeVoiSona:               "VOISONA",
	ArtistTypeVoiceroid:             "VOICEROID",
	ArtistTypeACEVirtualSinger:      "ACE_VIRTUAL_SINGER",
}

func (t ArtistType) String() string {
	return artistTypeNames.name(t)
}

func (t ArtistType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ArtistType) UnmarshalText(text []byte) error {
	return artistTypeNames.unmarshal(t, text)
}

func ParseArtistType(s string) (ArtistType, bool) {
	return artistTypeNames.parse(s)
}

// ArtistCategory is the role an artist plays on a particular song.
type ArtistCategory int

const (
	ArtistCategoryVocalist ArtistCategory = iota
	ArtistCategoryProducer
)

var artistCategoryNames = enumNames[ArtistCategory]{
	ArtistCategoryVocalist: "VOCALIST",
	ArtistCategoryProducer: "PRODUCER",
}

func (c ArtistCategory) String() string {
	return artistCategoryNames.name(c)
}

func (c ArtistCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ArtistCategory) UnmarshalText(text []byte) error {
	return artistCategoryNames.unmarshal(c, text)
}

func ParseArtistCategory(s string) (ArtistCategory, bool) {
	return artistCategoryNames.parse(s)
}

type NameType int

const (
	NameTypeOriginal NameType = iota
	NameTypeJapanese
	NameTypeEnglish
	NameTypeRomaji
)

var nameTypeNames = enumNames[NameType]{
	NameTypeOriginal: "ORIGINAL",
	NameTypeJapanese: "JAPANESE",
	NameTypeEnglish:  "ENGLISH",
	NameTypeRomaji:   "ROMAJI",
}

func (t NameType) String() string {
	return nameTypeNames.name(t)
}

func (t NameType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *NameType) UnmarshalText(text []byte) error {
	return nameTypeNames.unmarshal(t, text)
}

func ParseNameType(s string) (NameType, bool) {
	return nameTypeNames.parse(s)
}

type ArtistThumbnailType int

const (
	ArtistThumbnailOriginal ArtistThumbnailType = iota
	ArtistThumbnailMedium
	ArtistThumbnailSmall
	ArtistThumbnailTiny
)

var artistThumbnailTypeNames = enumNames[ArtistThumbnailType]{
	ArtistThumbnailOriginal: "ORIGINAL",
	ArtistThumbnailMedium:   "MEDIUM",
	ArtistThumbnailSmall:    "SMALL",
	ArtistThumbnailTiny:     "TINY",
}

func (t ArtistThumbnailType) String() string {
	return artistThumbnailTypeNames.name(t)
}

func (t ArtistThumbnailType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ArtistThumbnailType) UnmarshalText(text []byte) error {
	return artistThumbnailTypeNames.unmarshal(t, text)
}

// FilterMode combines the members of an inclusion or exclusion list.
// The zero value takes the list's own default: AND for inclusions, OR for
// exclusions.
type FilterMode int

const (
	FilterModeDefault FilterMode = iota
	FilterModeAnd
	FilterModeOr
)

var filterModeNames = enumNames[FilterMode]{
	FilterModeDefault: "DEFAULT",
	FilterModeAnd:     "AND",
	FilterModeOr:      "OR",
}

func (m FilterMode) String() string {
	return filterModeNames.name(m)
}

func (m FilterMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *FilterMode) UnmarshalText(text []byte) error {
	return filterModeNames.unmarshal(m, text)
}

func ParseFilterMode(s string) (FilterMode, bool) {
	return filterModeNames.parse(s)
}

type FilterDirection int

const (
	FilterDirectionDescending FilterDirection = iota
	FilterDirectionAscending
)

var filterDirectionNames = enumNames[FilterDirection]{
	FilterDirectionDescending: "DESCENDING",
	FilterDirectionAscending:  "ASCENDING",
}

func (d FilterDirection) String() string {
	return filterDirectionNames.name(d)
}

func (d FilterDirection) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *FilterDirection) UnmarshalText(text []byte) error {
	return filterDirectionNames.unmarshal(d, text)
}

func ParseFilterDirection(s string) (FilterDirection, bool) {
	return filterDirectionNames.parse(s)
}

type FilterOrder int

const (
	FilterOrderViews FilterOrder = iota
	FilterOrderPublishDate
	FilterOrderAdditionDate
	FilterOrderSongCount
)

var filterOrderNames = enumNames[FilterOrder]{
	FilterOrderViews:        "VIEWS",
	FilterOrderPublishDate:  "PUBLISH_DATE",
	FilterOrderAdditionDate: "ADDITION_DATE",
	FilterOrderSongCount:    "SONG_COUNT",
}

func (o FilterOrder) String() string {
	return filterOrderNames.name(o)
}

func (o FilterOrder) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *FilterOrder) UnmarshalText(text []byte) error {
	return filterOrderNames.unmarshal(o, text)
}

func ParseFilterOrder(s string) (FilterOrder, bool) {
	return filterOrderNames.parse(s)
}

type PlacementChange int

const (
	PlacementChangeSame PlacementChange = iota
	PlacementChangeUp
	PlacementChangeDown
)

var placementChangeNames = enumNames[PlacementChange]{
	PlacementChangeSame: "SAME",
	PlacementChangeUp:   "UP",
	PlacementChangeDown: "DOWN",
}

func (c PlacementChange) String() string {
	return placementChangeNames.name(c)
}

func (c PlacementChange) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *PlacementChange) UnmarshalText(text []byte) error {
	return placementChangeNames.unmarshal(c, text)
}
