// Package telemetry defines the records published by the relay's telemetry
// feed and decodes them from their JSON wire form.
package telemetry

// RecordKind identifies the type of a telemetry record.
type RecordKind string

const (
	KindConfig       RecordKind = "config"
	KindIngress      RecordKind = "ingress"
	KindEgress       RecordKind = "egress"
	KindCapabilities RecordKind = "capabilities"
	KindStorage      RecordKind = "storage"
)

// Record is implemented by every decoded telemetry message.
type Record interface {
	Kind() RecordKind
}

// Config is the relay's structural configuration.
type Config struct {
	Name     string         `json:"hdtnConfigName"`
	MyNodeID uint64         `json:"myNodeId"`
	Inducts  InductsConfig  `json:"inductsConfig"`
	Outducts OutductsConfig `json:"outductsConfig"`
}

type InductsConfig struct {
	Name         string         `json:"inductConfigName"`
	InductVector []InductConfig `json:"inductVector"`
}

type InductConfig struct {
	Name             string `json:"name"`
	ConvergenceLayer string `json:"convergenceLayer"`
	BoundPort        int    `json:"boundPort,omitempty"`
}

type OutductsConfig struct {
	Name          string          `json:"outductConfigName"`
	OutductVector []OutductConfig `json:"outductVector"`
}

type OutductConfig struct {
	Name                    string   `json:"name"`
	ConvergenceLayer        string   `json:"convergenceLayer"`
	NextHopNodeID           uint64   `json:"nextHopNodeId"`
	RemoteHostname          string   `json:"remoteHostname,omitempty"`
	RemotePort              int      `json:"remotePort,omitempty"`
	FinalDestinationEidUris []string `json:"finalDestinationEidUris,omitempty"`
}

func (*Config) Kind() RecordKind { return KindConfig }

// IngressTelemetry carries the per-induct active connections and the ingress
// counters split by downstream destination.
type IngressTelemetry struct {
	TimestampMillis        int64             `json:"timestampMilliseconds"`
	BundleCountEgress      uint64            `json:"bundleCountEgress"`
	BundleCountStorage     uint64            `json:"bundleCountStorage"`
	BundleByteCountEgress  uint64            `json:"bundleByteCountEgress"`
	BundleByteCountStorage uint64            `json:"bundleByteCountStorage"`
	Inducts                []InductTelemetry `json:"allInducts"`
}

type InductTelemetry struct {
	ConvergenceLayer string                `json:"convergenceLayer"`
	Connections      []ConnectionTelemetry `json:"inductConnections"`
}

type ConnectionTelemetry struct {
	ConnectionName           string `json:"connectionName"`
	InputName                string `json:"inputName"`
	TotalBundlesReceived     uint64 `json:"totalBundlesReceived"`
	TotalBundleBytesReceived uint64 `json:"totalBundleBytesReceived"`
}

func (*IngressTelemetry) Kind() RecordKind { return KindIngress }

// EgressTelemetry carries the egress counters and one entry per outduct, in
// outduct array order.
type EgressTelemetry struct {
	TimestampMillis                               int64              `json:"timestampMilliseconds"`
	TotalBundlesGivenToOutducts                   uint64             `json:"totalBundlesGivenToOutducts"`
	TotalBundleBytesGivenToOutducts               uint64             `json:"totalBundleBytesGivenToOutducts"`
	TotalTcpclBundlesReceived                     uint64             `json:"totalTcpclBundlesReceived"`
	TotalTcpclBundleBytesReceived                 uint64             `json:"totalTcpclBundleBytesReceived"`
	TotalStorageToIngressOpportunisticBundles     uint64             `json:"totalStorageToIngressOpportunisticBundles"`
	TotalStorageToIngressOpportunisticBundleBytes uint64             `json:"totalStorageToIngressOpportunisticBundleBytes"`
	TotalBundlesSuccessfullySent                  uint64             `json:"totalBundlesSuccessfullySent"`
	TotalBundleBytesSuccessfullySent              uint64             `json:"totalBundleBytesSuccessfullySent"`
	Outducts                                      []OutductTelemetry `json:"allOutducts"`
}

type OutductTelemetry struct {
	ConvergenceLayer         string `json:"convergenceLayer"`
	TotalBundlesAcked        uint64 `json:"totalBundlesAcked"`
	TotalBundleBytesAcked    uint64 `json:"totalBundleBytesAcked"`
	TotalBundlesSent         uint64 `json:"totalBundlesSent"`
	TotalBundleBytesSent     uint64 `json:"totalBundleBytesSent"`
	TotalBundlesFailedToSend uint64 `json:"totalBundlesFailedToSend"`
	// Link flags are pointers so an absent field can be told apart from false.
	LinkIsUpPhysically      *bool `json:"linkIsUpPhysically,omitempty"`
	LinkIsUpPerTimeSchedule *bool `json:"linkIsUpPerTimeSchedule,omitempty"`
}

func (*EgressTelemetry) Kind() RecordKind { return KindEgress }

// CapabilityTelemetry advertises the final destinations reachable through
// each outduct.
type CapabilityTelemetry struct {
	Capabilities []OutductCapability `json:"outductCapabilityTelemetryList"`
}

type OutductCapability struct {
	OutductArrayIndex            int      `json:"outductArrayIndex"`
	NextHopNodeID                uint64   `json:"nextHopNodeId"`
	MaxBundlesInPipeline         uint64   `json:"maxBundlesInPipeline,omitempty"`
	MaxBundleSizeBytesInPipeline uint64   `json:"maxBundleSizeBytesInPipeline,omitempty"`
	FinalDestinationEids         []string `json:"finalDestinationEidsList"`
}

func (*CapabilityTelemetry) Kind() RecordKind { return KindCapabilities }

// StorageTelemetry carries the storage module's disk counters.
type StorageTelemetry struct {
	TimestampMillis                                          int64  `json:"timestampMilliseconds"`
	TotalBundlesErasedFromStorageNoCustodyTransfer           uint64 `json:"totalBundlesErasedFromStorageNoCustodyTransfer"`
	TotalBundlesErasedFromStorageWithCustodyTransfer         uint64 `json:"totalBundlesErasedFromStorageWithCustodyTransfer"`
	TotalBundlesRewrittenToStorageFromFailedEgressSend       uint64 `json:"totalBundlesRewrittenToStorageFromFailedEgressSend"`
	TotalBundlesSentToEgressFromStorageReadFromDisk          uint64 `json:"totalBundlesSentToEgressFromStorageReadFromDisk"`
	TotalBundleBytesSentToEgressFromStorageReadFromDisk      uint64 `json:"totalBundleBytesSentToEgressFromStorageReadFromDisk"`
	TotalBundlesSentToEgressFromStorageForwardCutThrough     uint64 `json:"totalBundlesSentToEgressFromStorageForwardCutThrough"`
	TotalBundleBytesSentToEgressFromStorageForwardCutThrough uint64 `json:"totalBundleBytesSentToEgressFromStorageForwardCutThrough"`
	NumRfc5050CustodyTransfers                               uint64 `json:"numRfc5050CustodyTransfers"`
	NumAcsCustodyTransfers                                   uint64 `json:"numAcsCustodyTransfers"`
	NumAcsPacketsReceived                                    uint64 `json:"numAcsPacketsReceived"`
	NumBundlesOnDisk                                         uint64 `json:"numBundlesOnDisk"`
	NumBundleBytesOnDisk                                     uint64 `json:"numBundleBytesOnDisk"`
	TotalBundleWriteOperationsToDisk                         uint64 `json:"totalBundleWriteOperationsToDisk"`
	TotalBundleByteWriteOperationsToDisk                     uint64 `json:"totalBundleByteWriteOperationsToDisk"`
	TotalBundleEraseOperationsFromDisk                       uint64 `json:"totalBundleEraseOperationsFromDisk"`
	TotalBundleByteEraseOperationsFromDisk                   uint64 `json:"totalBundleByteEraseOperationsFromDisk"`
	UsedSpaceBytes                                           uint64 `json:"usedSpaceBytes"`
	FreeSpaceBytes                                           uint64 `json:"freeSpaceBytes"`
}

// BundlesSentToEgress is the storage to egress bundle count, disk reads plus
// cut-through forwards.
func (s *StorageTelemetry) BundlesSentToEgress() uint64 {
	return s.TotalBundlesSentToEgressFromStorageReadFromDisk + s.TotalBundlesSentToEgressFromStorageForwardCutThrough
}

// BundleBytesSentToEgress is the byte counterpart of BundlesSentToEgress.
func (s *StorageTelemetry) BundleBytesSentToEgress() uint64 {
	return s.TotalBundleBytesSentToEgressFromStorageReadFromDisk + s.TotalBundleBytesSentToEgressFromStorageForwardCutThrough
}

func (*StorageTelemetry) Kind() RecordKind { return KindStorage }

// Bool returns a pointer to b, for building records in code.
func Bool(b bool) *bool {
	return &b
}
