package resource

import (
	"math"
	"math/big"
	"sort"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

const (
	Cpu    = "cpu"
	Memory = "memory"
)

// QuantityAsFloat64 returns a float64 representation of a quantity.
// q.AsApproximateFloat64 sometimes returns surprising results for large binary-suffixed quantities.
func QuantityAsFloat64(q resource.Quantity) float64 {
	dec := q.AsDec()
	unscaled := dec.UnscaledBig()
	scale := dec.Scale()
	unscaledFloat, _ := new(big.Float).SetInt(unscaled).Float64()
	return unscaledFloat * math.Pow10(-int(scale))
}

// ComputeResources maps a resource name (cpu, memory) to an amount.
type ComputeResources map[string]resource.Quantity

func New(cpu, memory resource.Quantity) ComputeResources {
	return ComputeResources{Cpu: cpu.DeepCopy(), Memory: memory.DeepCopy()}
}

func (a ComputeResources) String() string {
	str := ""

	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if str != "" {
			str += ", "
		}
		v := a[k]
		str += k + ": " + v.String()
	}
	return str
}

func (a ComputeResources) Add(b ComputeResources) {
	for k, v := range b {
		existing, ok := a[k]
		if ok {
			existing.Add(v)
			a[k] = existing
		} else {
			a[k] = v.DeepCopy()
		}
	}
}

// Sub subtracts b from a in place. A key present only in b ends up negated in a.
func (a ComputeResources) Sub(b ComputeResources) {
	for k, v := range b {
		existing, ok := a[k]
		if ok {
			existing.Sub(v)
			a[k] = existing
		} else {
			cpy := v.DeepCopy()
			cpy.Neg()
			a[k] = cpy
		}
	}
}

func (a ComputeResources) DeepCopy() ComputeResources {
	targetComputeResource := make(ComputeResources, len(a))
	for key, value := range a {
		targetComputeResource[key] = value.DeepCopy()
	}
	return targetComputeResource
}

// Fits reports whether a holds at least as much of every resource as b.
func (a ComputeResources) Fits(b ComputeResources) bool {
	reduced := a.DeepCopy()
	reduced.Sub(b)
	return reduced.IsValid()
}

// IsValid reports whether no amount is negative.
func (a ComputeResources) IsValid() bool {
	for _, value := range a {
		if value.Sign() < 0 {
			return false
		}
	}
	return true
}

func (a ComputeResources) IsZero() bool {
	for _, value := range a {
		if !value.IsZero() {
			return false
		}
	}
	return true
}

func (a ComputeResources) ToProto() *agentapi.Resources {
	memory := a[Memory]
	return &agentapi.Resources{
		Cpus:   QuantityAsFloat64(a[Cpu]),
		Memory: uint64(memory.Value()),
	}
}

func FromProto(r *agentapi.Resources) ComputeResources {
	if r == nil {
		return ComputeResources{}
	}
	return ComputeResources{
		Cpu:    *resource.NewMilliQuantity(int64(math.Round(r.Cpus*1000)), resource.DecimalSI),
		Memory: *resource.NewQuantity(int64(r.Memory), resource.BinarySI),
	}
}
