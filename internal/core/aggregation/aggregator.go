package aggregation

import "math"

// Reducer folds the values of one bucket into the aggregate.
// Backends that aggregate in SQL never call it; the in-memory store does.
// To add a function: implement Reducer, register it here and teach the
// SQL builder its expression in sqlFunctions.
type Reducer interface {
	Reduce(values []float64) float64
}

// Functions is the registry of supported row aggregation functions.
var Functions = map[string]Reducer{
	FuncAvg:       avgAgg{},
	FuncMin:       minAgg{},
	FuncMax:       maxAgg{},
	FuncSum:       sumAgg{},
	FuncCount:     countAgg{},
	FuncStddevPop: stddevPopAgg{},
}

// sqlFunctions maps functions to their SQL aggregate name.
var sqlFunctions = map[string]string{
	FuncAvg:       "AVG",
	FuncMin:       "MIN",
	FuncMax:       "MAX",
	FuncSum:       "SUM",
	FuncCount:     "COUNT",
	FuncStddevPop: "STDDEV_POP",
}

// ValidFunction reports whether fn is a registered aggregation function.
func ValidFunction(fn string) bool {
	_, ok := Functions[fn]
	return ok
}

// roundedFunctions produce fractional results that are rounded to 2 places.
var roundedFunctions = map[string]bool{
	FuncAvg:       true,
	FuncStddevPop: true,
}

type countAgg struct{}

func (countAgg) Reduce(values []float64) float64 { return float64(len(values)) }

type sumAgg struct{}

func (sumAgg) Reduce(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

type avgAgg struct{}

func (avgAgg) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sumAgg{}.Reduce(values) / float64(len(values))
}

type minAgg struct{}

func (minAgg) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

type maxAgg struct{}

func (maxAgg) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// stddevPopAgg is the population standard deviation, matching STDDEV_POP.
type stddevPopAgg struct{}

func (stddevPopAgg) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := avgAgg{}.Reduce(values)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
