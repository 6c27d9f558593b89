/*
 * @module service/sequence/lstm
 * @description LSTM 前向推理：多层 LSTM 取末时刻隐状态过线性输出层
 * @architecture 业务逻辑层 - 序列异常检测
 * @stateFlow 逐时刻计算门控 -> 末时刻隐状态 -> 线性层输出 logits
 * @rules 门顺序 i/f/g/o；隐状态与细胞状态零初始化
 * @dependencies gonum.org/v1/gonum/mat
 * @refs weights.go, service.go
 */

package sequence

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Network LSTM 推理网络
type Network struct {
	layers     []layerParams
	fcWeight   *mat.Dense
	fcBias     []float64
	hiddenSize int
	inputSize  int
	numClasses int
}

type layerParams struct {
	wIh *mat.Dense
	wHh *mat.Dense
	bIh []float64
	bHh []float64
}

// NewNetwork 由权重构造推理网络
func NewNetwork(w *Weights) (*Network, error) {
	if len(w.Layers) == 0 {
		return nil, fmt.Errorf("权重不含LSTM层")
	}
	hidden := len(w.Layers[0].WHh[0])
	input := len(w.Layers[0].WIh[0])

	n := &Network{
		hiddenSize: hidden,
		inputSize:  input,
		numClasses: len(w.FC.Bias),
	}
	for _, layer := range w.Layers {
		n.layers = append(n.layers, layerParams{
			wIh: denseFrom(layer.WIh),
			wHh: denseFrom(layer.WHh),
			bIh: layer.BIh,
			bHh: layer.BHh,
		})
	}
	n.fcWeight = denseFrom(w.FC.Weight)
	n.fcBias = w.FC.Bias
	return n, nil
}

// denseFrom 二维切片转稠密矩阵
func denseFrom(rows [][]float64) *mat.Dense {
	r := len(rows)
	c := len(rows[0])
	data := make([]float64, 0, r*c)
	for _, row := range rows {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

// Forward 前向推理，seq 为 [T][inputSize]，返回 [numClasses] logits
func (n *Network) Forward(seq [][]float64) ([]float64, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("输入序列为空")
	}
	if len(seq[0]) != n.inputSize {
		return nil, fmt.Errorf("输入维度 %d 与网络 %d 不一致", len(seq[0]), n.inputSize)
	}

	h := len(n.layers)
	hiddens := make([]*mat.VecDense, h)
	cells := make([]*mat.VecDense, h)
	for l := 0; l < h; l++ {
		hiddens[l] = mat.NewVecDense(n.hiddenSize, nil)
		cells[l] = mat.NewVecDense(n.hiddenSize, nil)
	}

	for _, step := range seq {
		x := mat.NewVecDense(len(step), append([]float64(nil), step...))
		for l, layer := range n.layers {
			hiddens[l], cells[l] = lstmCell(layer, x, hiddens[l], cells[l])
			x = hiddens[l]
		}
	}

	last := hiddens[h-1]
	logits := make([]float64, n.numClasses)
	var out mat.VecDense
	out.MulVec(n.fcWeight, last)
	for i := 0; i < n.numClasses; i++ {
		logits[i] = out.AtVec(i) + n.fcBias[i]
	}
	return logits, nil
}

// lstmCell 单层单时刻门控计算
func lstmCell(p layerParams, x, hPrev, cPrev *mat.VecDense) (*mat.VecDense, *mat.VecDense) {
	hidden := hPrev.Len()

	var ih, hh mat.VecDense
	ih.MulVec(p.wIh, x)
	hh.MulVec(p.wHh, hPrev)

	hNext := mat.NewVecDense(hidden, nil)
	cNext := mat.NewVecDense(hidden, nil)
	for j := 0; j < hidden; j++ {
		iGate := sigmoid(ih.AtVec(j) + p.bIh[j] + hh.AtVec(j) + p.bHh[j])
		fGate := sigmoid(ih.AtVec(hidden+j) + p.bIh[hidden+j] + hh.AtVec(hidden+j) + p.bHh[hidden+j])
		gGate := math.Tanh(ih.AtVec(2*hidden+j) + p.bIh[2*hidden+j] + hh.AtVec(2*hidden+j) + p.bHh[2*hidden+j])
		oGate := sigmoid(ih.AtVec(3*hidden+j) + p.bIh[3*hidden+j] + hh.AtVec(3*hidden+j) + p.bHh[3*hidden+j])

		c := fGate*cPrev.AtVec(j) + iGate*gGate
		cNext.SetVec(j, c)
		hNext.SetVec(j, oGate*math.Tanh(c))
	}
	return hNext, cNext
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Softmax logits 归一化为概率分布
func Softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
