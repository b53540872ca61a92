package scene

import (
	"github.com/xiaonanln/dtnview/rate"
	"github.com/xiaonanln/dtnview/topology"
)

// Summary rate keys.
const (
	RateIngressToStorage = "ingressToStorage"
	RateIngressToEgress  = "ingressToEgress"
	RateEgressToIngress  = "egressToIngress"
	RateStorageToEgress  = "storageToEgress"
	RateStorageToDisk    = "storageToDisk"
	RateDiskToStorage    = "diskToStorage"
	RateDiskErase        = "diskErase"
)

// SummaryPairs lists the summary rate pairs of sum by key.
func SummaryPairs(sum *topology.Summary) map[string]*topology.RatePair {
	return map[string]*topology.RatePair{
		RateIngressToStorage: sum.IngressToStorage,
		RateIngressToEgress:  sum.IngressToEgress,
		RateEgressToIngress:  sum.EgressToIngress,
		RateStorageToEgress:  sum.StorageToEgress,
		RateStorageToDisk:    sum.StorageToDisk,
		RateDiskToStorage:    sum.DiskToStorage,
		RateDiskErase:        sum.DiskErase,
	}
}

// BuildSummary renders the module level rates and disk usage.
func BuildSummary(sum *topology.Summary, decimals int) SummaryView {
	v := SummaryView{
		Rates:          make(map[string]RateView),
		UsedSpaceBytes: sum.UsedSpaceBytes,
		FreeSpaceBytes: sum.FreeSpaceBytes,
		UsedSpace:      rate.FormatHumanReadable(float64(sum.UsedSpaceBytes), decimals, "B", 1024),
		FreeSpace:      rate.FormatHumanReadable(float64(sum.FreeSpaceBytes), decimals, "B", 1024),
		BundlesOnDisk:  sum.BundlesOnDisk,
	}
	for key, rp := range SummaryPairs(sum) {
		if rp == nil {
			continue
		}
		bits, items := rp.Bits.Current(), rp.Items.Current()
		v.Rates[key] = RateView{
			BitsPerSec:  bits,
			ItemsPerSec: items,
			Ready:       rp.Ready(),
			Label:       RateLabel(bits, items, decimals),
		}
	}
	return v
}
