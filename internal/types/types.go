// Package types holds the domain model shared across the semantic layer,
// dataset deployment, versioned asset store, and permission gate.
package types

import (
	"time"

	"github.com/google/uuid"
)

// DatasetType enumerates the supported warehouse-view kinds. Only View is
// specified; the type exists so the catalog can grow without a schema
// migration.
type DatasetType string

const (
	DatasetTypeView DatasetType = "View"
)

// Dataset is a warehouse-view-backed semantic entity owned by an
// organization. Natural key is (DatabaseName, DataSourceID); row identity
// is ID.
type Dataset struct {
	ID                 uuid.UUID
	Name               string
	Schema             string
	DatabaseName       string
	DataSourceID       uuid.UUID
	DatabaseIdentifier string
	Definition         string
	WhenToUse          string
	Type               DatasetType
	Enabled            bool
	OrganizationID     uuid.UUID
	YMLFile            string
	Model              string
	CreatedBy          uuid.UUID
	UpdatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          *time.Time
}

// DatasetColumn is a dependent entity keyed by (DatasetID, Name).
type DatasetColumn struct {
	DatasetID    uuid.UUID
	Name         string
	Type         string
	Description  string
	SemanticType string
	DimType      string
	Expr         string
	Nullable     bool
	DeletedAt    *time.Time
}

// Dimension, Measure, and Relationship describe a semantic-layer Model
// (the semantic-layer model).
type Dimension struct {
	Name        string
	Description string
	Type        string
	Searchable  bool
	Options     []string
}

type Measure struct {
	Name        string
	Description string
	Type        string
}

type Relationship struct {
	Name        string
	PrimaryKey  string
	ForeignKey  string
	Type        string
	Cardinality string
}

// Model is the typed, resolved representation of one semantic-layer YAML
// document.
type Model struct {
	Name           string
	Description    string
	DataSourceName string
	Database       string
	Schema         string
	Dimensions     []Dimension
	Measures       []Measure
	Relationships  []Relationship
}

// VerificationStatus mirrors the metric-review workflow.
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationInReview   VerificationStatus = "in_review"
	VerificationNotVerified VerificationStatus = "not_verified"
	VerificationBackLog    VerificationStatus = "backlogged"
)

// ChartKind is the discriminator of the ChartConfig tagged union.
type ChartKind string

const (
	ChartBar    ChartKind = "bar"
	ChartLine   ChartKind = "line"
	ChartScatter ChartKind = "scatter"
	ChartPie    ChartKind = "pie"
	ChartCombo  ChartKind = "combo"
	ChartMetric ChartKind = "metric"
	ChartTable  ChartKind = "table"
)

// ColumnLabelFormat is one entry of the ordered column_label_formats map.
type ColumnLabelFormat struct {
	Style        string `json:"style,omitempty" yaml:"style,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	NumberFormat string `json:"number_format,omitempty" yaml:"number_format,omitempty"`
	DateFormat   string `json:"date_format,omitempty" yaml:"date_format,omitempty"`
}

// ChartConfigBase is embedded by every chart-config variant.
type ChartConfigBase struct {
	ColumnLabelFormats []ColumnLabelFormatEntry `json:"column_label_formats" yaml:"column_label_formats"`
	ColumnSettings     map[string]any            `json:"column_settings,omitempty" yaml:"column_settings,omitempty"`
	Trendlines         []map[string]any          `json:"trendlines,omitempty" yaml:"trendlines,omitempty"`
}

// ColumnLabelFormatEntry preserves insertion order for the "ordered
// map<string, format>" shape, since Go maps don't.
type ColumnLabelFormatEntry struct {
	Column string            `json:"column" yaml:"column"`
	Format ColumnLabelFormat `json:"format" yaml:"format"`
}

// ChartConfig is the discriminated union over Kind with type-specific
// fields folded into Extra (kept as a raw map since the spec leaves the
// per-kind fields open-ended).
type ChartConfig struct {
	Kind  ChartKind
	Base  ChartConfigBase
	Extra map[string]any
}

// MetricYml is the parsed content of one metric version.
type MetricYml struct {
	Name        string
	Description string
	SQL         string
	TimeFrame   string
	ChartConfig ChartConfig
}

// DataMetadata captures the probe-query result shape.
type DataMetadata struct {
	Columns     []ColumnMetadata
	RowCount    int
	ProbedAt    time.Time
}

type ColumnMetadata struct {
	Name            string
	SimpleType      string
	Min             string
	Max             string
	DistinctEstimate int64
}

// VersionContent is one entry of a VersionHistory.
type VersionContent struct {
	VersionNumber int
	Content       any
	CreatedAt     time.Time
}

// VersionHistory is an append-only mapping from version number to content
// snapshot.
type VersionHistory struct {
	Versions map[int]VersionContent
	Latest   int
}

// NewVersionHistory seeds a history with version 1.
func NewVersionHistory(content any, at time.Time) VersionHistory {
	return VersionHistory{
		Versions: map[int]VersionContent{1: {VersionNumber: 1, Content: content, CreatedAt: at}},
		Latest:   1,
	}
}

// Append adds content as a new version and returns the new version number.
func (h *VersionHistory) Append(content any, at time.Time) int {
	next := h.Latest + 1
	h.Versions[next] = VersionContent{VersionNumber: next, Content: content, CreatedAt: at}
	h.Latest = next
	return next
}

// Overwrite replaces the latest version's content in place without
// advancing the counter.
func (h *VersionHistory) Overwrite(content any, at time.Time) {
	h.Versions[h.Latest] = VersionContent{VersionNumber: h.Latest, Content: content, CreatedAt: at}
}

// At returns the content recorded for a given version number.
func (h *VersionHistory) At(version int) (VersionContent, bool) {
	v, ok := h.Versions[version]
	return v, ok
}

// MetricFile is the row identity + content for one metric asset.
type MetricFile struct {
	ID             uuid.UUID
	Name           string
	Content        MetricYml
	DataSourceID   uuid.UUID
	OrganizationID uuid.UUID
	DataMetadata   *DataMetadata
	Verification   VerificationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	VersionHistory VersionHistory
}

// MetricFileToDataset is one row of the metric-version to dataset
// association join table.
type MetricFileToDataset struct {
	MetricFileID        uuid.UUID
	DatasetID           uuid.UUID
	MetricVersionNumber int
	CreatedAt           time.Time
}

// DashboardItem is one tile reference in a dashboard row.
type DashboardItem struct {
	ID         uuid.UUID
	ColumnSpan int
}

// DashboardRow is one row of tiles; spans must sum to 12.
type DashboardRow struct {
	Items []DashboardItem
}

// DashboardYml is the parsed content of one dashboard version.
type DashboardYml struct {
	Name        string
	Description string
	Rows        []DashboardRow
}

// DashboardFile is the row identity + content for one dashboard asset.
type DashboardFile struct {
	ID             uuid.UUID
	Name           string
	Content        DashboardYml
	OrganizationID uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
	VersionHistory VersionHistory
}

// AssetType distinguishes the kinds of assets AssetPermission and
// CollectionToAsset can reference.
type AssetType string

const (
	AssetTypeMetric    AssetType = "metric_file"
	AssetTypeDashboard AssetType = "dashboard_file"
	AssetTypeCollection AssetType = "collection"
	AssetTypeChatThread AssetType = "chat_thread"
)

// IdentityType distinguishes user grants from team grants.
type IdentityType string

const (
	IdentityUser IdentityType = "user"
	IdentityTeam IdentityType = "team"
)

// Role is a totally ordered access level.
type Role int

const (
	RoleNone Role = iota
	RoleCanView
	RoleCanEdit
	RoleFullAccess
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleCanView:
		return "CanView"
	case RoleCanEdit:
		return "CanEdit"
	case RoleFullAccess:
		return "FullAccess"
	case RoleOwner:
		return "Owner"
	default:
		return "None"
	}
}

// Max returns the greater of two roles in the total order.
func Max(a, b Role) Role {
	if a > b {
		return a
	}
	return b
}

// AssetPermission is one grant row.
type AssetPermission struct {
	IdentityID   uuid.UUID
	IdentityType IdentityType
	AssetID      uuid.UUID
	AssetType    AssetType
	Role         Role
	DeletedAt    *time.Time
}

// WorkspaceRole is an organization-wide role that can bypass per-asset
// grants entirely.
type WorkspaceRole string

const (
	WorkspaceRoleViewer      WorkspaceRole = "Viewer"
	WorkspaceRoleRestrictedQuerier WorkspaceRole = "RestrictedQuerier"
	WorkspaceRoleQuerier     WorkspaceRole = "Querier"
	WorkspaceRoleDataAdmin   WorkspaceRole = "DataAdmin"
	WorkspaceRoleWorkspaceAdmin WorkspaceRole = "WorkspaceAdmin"
)

// IsOrgAdmin reports whether the role bypasses the permission gate
// entirely.
func (w WorkspaceRole) IsOrgAdmin() bool {
	return w == WorkspaceRoleWorkspaceAdmin || w == WorkspaceRoleDataAdmin
}

// OrgMembership is one organization a user belongs to, with their
// workspace role in it.
type OrgMembership struct {
	OrganizationID uuid.UUID
	WorkspaceRole  WorkspaceRole
}

// CollectionToAsset links an asset into a named collection with an
// ordering index.
type CollectionToAsset struct {
	CollectionID uuid.UUID
	AssetID      uuid.UUID
	AssetType    AssetType
	OrderIndex   int
}

// Favorite is a per-user favorite with an ordering index.
type Favorite struct {
	UserID     uuid.UUID
	AssetID    uuid.UUID
	AssetType  AssetType
	OrderIndex int
}
