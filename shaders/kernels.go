package shaders

import (
	"math"

	"github.com/artinkavousi/Webfluidsystem/gpu"
)

// The kernels below mirror the GLSL sources line for line so the software
// device renders what a GL driver would.

type neighbors struct {
	L, R, T, B gpu.Vec2
}

func around(uv gpu.Vec2, texel gpu.Vec2) neighbors {
	return neighbors{
		L: gpu.Vec2{uv[0] - texel[0], uv[1]},
		R: gpu.Vec2{uv[0] + texel[0], uv[1]},
		T: gpu.Vec2{uv[0], uv[1] + texel[1]},
		B: gpu.Vec2{uv[0], uv[1] - texel[1]},
	}
}

func scale(v gpu.Vec4, s float32) gpu.Vec4 {
	return gpu.Vec4{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

func add(a, b gpu.Vec4) gpu.Vec4 {
	return gpu.Vec4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

func mix(a, b gpu.Vec4, t float32) gpu.Vec4 {
	return gpu.Vec4{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
		a[3] + (b[3]-a[3])*t,
	}
}

func mix3(a, b gpu.Vec3, t float32) gpu.Vec3 {
	return gpu.Vec3{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}

func length3(r, g, b float32) float32 {
	return float32(math.Sqrt(float64(r*r + g*g + b*b)))
}

func maxChannel(c gpu.Vec4) float32 {
	return max(c[0], c[1], c[2])
}

func clampf(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

func fract(v float32) float32 {
	return v - float32(math.Floor(float64(v)))
}

func copyKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	return tex.Sample
}

func clearKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	value := in.Float("value")
	return func(uv gpu.Vec2) gpu.Vec4 {
		return scale(tex.Sample(uv), value)
	}
}

func colorKernel(in gpu.Inputs) gpu.FragmentFunc {
	c := in.Vec4("color")
	return func(gpu.Vec2) gpu.Vec4 { return c }
}

func checkerboardKernel(in gpu.Inputs) gpu.FragmentFunc {
	const cells = 25
	aspect := in.Float("aspectRatio")
	return func(uv gpu.Vec2) gpu.Vec4 {
		x := math.Floor(float64(uv[0] * cells * aspect))
		y := math.Floor(float64(uv[1] * cells))
		v := float32(math.Mod(x+y, 2))
		if v < 0 {
			v += 2
		}
		v = v*0.1 + 0.8
		return gpu.Vec4{v, v, v, 1}
	}
}

func splatKernel(in gpu.Inputs) gpu.FragmentFunc {
	target := in.Sampler("uTarget")
	aspect := in.Float("aspectRatio")
	color := in.Vec3("color")
	point := in.Vec2("point")
	radius := in.Float("radius")
	return func(uv gpu.Vec2) gpu.Vec4 {
		px := (uv[0] - point[0]) * aspect
		py := uv[1] - point[1]
		s := float32(math.Exp(float64(-(px*px + py*py) / radius)))
		base := target.Sample(uv)
		return gpu.Vec4{base[0] + s*color[0], base[1] + s*color[1], base[2] + s*color[2], 1}
	}
}

func bilerp(s gpu.Sampler, uv gpu.Vec2, tsize gpu.Vec2) gpu.Vec4 {
	stx := uv[0]/tsize[0] - 0.5
	sty := uv[1]/tsize[1] - 0.5
	ix := float32(math.Floor(float64(stx)))
	iy := float32(math.Floor(float64(sty)))
	fx, fy := stx-ix, sty-iy
	a := s.Sample(gpu.Vec2{(ix + 0.5) * tsize[0], (iy + 0.5) * tsize[1]})
	b := s.Sample(gpu.Vec2{(ix + 1.5) * tsize[0], (iy + 0.5) * tsize[1]})
	c := s.Sample(gpu.Vec2{(ix + 0.5) * tsize[0], (iy + 1.5) * tsize[1]})
	d := s.Sample(gpu.Vec2{(ix + 1.5) * tsize[0], (iy + 1.5) * tsize[1]})
	return mix(mix(a, b, fx), mix(c, d, fx), fy)
}

func advectionKernel(in gpu.Inputs) gpu.FragmentFunc {
	velocity := in.Sampler("uVelocity")
	source := in.Sampler("uSource")
	texel := in.Vec2("texelSize")
	dyeTexel := in.Vec2("dyeTexelSize")
	dt := in.Float("dt")
	decay := 1 + in.Float("dissipation")*dt
	manual := in.Keyword(KeywordManualFiltering)
	return func(uv gpu.Vec2) gpu.Vec4 {
		var result gpu.Vec4
		if manual {
			v := bilerp(velocity, uv, texel)
			coord := gpu.Vec2{uv[0] - dt*v[0]*texel[0], uv[1] - dt*v[1]*texel[1]}
			result = bilerp(source, coord, dyeTexel)
		} else {
			v := velocity.Sample(uv)
			coord := gpu.Vec2{uv[0] - dt*v[0]*texel[0], uv[1] - dt*v[1]*texel[1]}
			result = source.Sample(coord)
		}
		return scale(result, 1/decay)
	}
}

func curlKernel(in gpu.Inputs) gpu.FragmentFunc {
	velocity := in.Sampler("uVelocity")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		n := around(uv, texel)
		l := velocity.Sample(n.L)[1]
		r := velocity.Sample(n.R)[1]
		t := velocity.Sample(n.T)[0]
		b := velocity.Sample(n.B)[0]
		return gpu.Vec4{0.5 * (r - l - t + b), 0, 0, 1}
	}
}

func vorticityKernel(in gpu.Inputs) gpu.FragmentFunc {
	velocity := in.Sampler("uVelocity")
	curlTex := in.Sampler("uCurl")
	texel := in.Vec2("texelSize")
	strength := in.Float("curl")
	dt := in.Float("dt")
	abs := func(v float32) float32 { return float32(math.Abs(float64(v))) }
	return func(uv gpu.Vec2) gpu.Vec4 {
		n := around(uv, texel)
		l := curlTex.Sample(n.L)[0]
		r := curlTex.Sample(n.R)[0]
		t := curlTex.Sample(n.T)[0]
		b := curlTex.Sample(n.B)[0]
		c := curlTex.Sample(uv)[0]

		fx := 0.5 * (abs(t) - abs(b))
		fy := 0.5 * (abs(r) - abs(l))
		inv := 1 / (float32(math.Hypot(float64(fx), float64(fy))) + 0.0001)
		fx *= inv * strength * c
		fy *= inv * strength * c
		fy = -fy

		v := velocity.Sample(uv)
		vx := clampf(v[0]+fx*dt, -1000, 1000)
		vy := clampf(v[1]+fy*dt, -1000, 1000)
		return gpu.Vec4{vx, vy, 0, 1}
	}
}

func divergenceKernel(in gpu.Inputs) gpu.FragmentFunc {
	velocity := in.Sampler("uVelocity")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		n := around(uv, texel)
		l := velocity.Sample(n.L)[0]
		r := velocity.Sample(n.R)[0]
		t := velocity.Sample(n.T)[1]
		b := velocity.Sample(n.B)[1]

		c := velocity.Sample(uv)
		if n.L[0] < 0 {
			l = -c[0]
		}
		if n.R[0] > 1 {
			r = -c[0]
		}
		if n.T[1] > 1 {
			t = -c[1]
		}
		if n.B[1] < 0 {
			b = -c[1]
		}
		return gpu.Vec4{0.5 * (r - l + t - b), 0, 0, 1}
	}
}

func pressureKernel(in gpu.Inputs) gpu.FragmentFunc {
	pressure := in.Sampler("uPressure")
	divergence := in.Sampler("uDivergence")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		n := around(uv, texel)
		l := pressure.Sample(n.L)[0]
		r := pressure.Sample(n.R)[0]
		t := pressure.Sample(n.T)[0]
		b := pressure.Sample(n.B)[0]
		div := divergence.Sample(uv)[0]
		return gpu.Vec4{(l + r + b + t - div) * 0.25, 0, 0, 1}
	}
}

func gradientSubtractKernel(in gpu.Inputs) gpu.FragmentFunc {
	pressure := in.Sampler("uPressure")
	velocity := in.Sampler("uVelocity")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		n := around(uv, texel)
		l := pressure.Sample(n.L)[0]
		r := pressure.Sample(n.R)[0]
		t := pressure.Sample(n.T)[0]
		b := pressure.Sample(n.B)[0]
		v := velocity.Sample(uv)
		return gpu.Vec4{v[0] - (r - l), v[1] - (t - b), 0, 1}
	}
}

func bloomPrefilterKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	curve := in.Vec3("curve")
	threshold := in.Float("threshold")
	return func(uv gpu.Vec2) gpu.Vec4 {
		c := tex.Sample(uv)
		br := maxChannel(c)
		rq := clampf(br-curve[0], 0, curve[1])
		rq = curve[2] * rq * rq
		k := max(rq, br-threshold) / max(br, 0.0001)
		return gpu.Vec4{c[0] * k, c[1] * k, c[2] * k, 0}
	}
}

func crossAverage(tex gpu.Sampler, uv, texel gpu.Vec2) gpu.Vec4 {
	n := around(uv, texel)
	sum := add(add(tex.Sample(n.L), tex.Sample(n.R)), add(tex.Sample(n.T), tex.Sample(n.B)))
	return scale(sum, 0.25)
}

func bloomBlurKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		return crossAverage(tex, uv, texel)
	}
}

func bloomFinalKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	texel := in.Vec2("texelSize")
	intensity := in.Float("intensity")
	return func(uv gpu.Vec2) gpu.Vec4 {
		return scale(crossAverage(tex, uv, texel), intensity)
	}
}

func sunraysMaskKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	return func(uv gpu.Vec2) gpu.Vec4 {
		c := tex.Sample(uv)
		br := maxChannel(c)
		c[3] = 1 - min(max(br*20, 0), 0.8)
		return c
	}
}

func sunraysKernel(in gpu.Inputs) gpu.FragmentFunc {
	const (
		iterations = 16
		density    = 0.3
		decay      = 0.95
		exposure   = 0.7
	)
	tex := in.Sampler("uTexture")
	weight := in.Float("weight")
	return func(uv gpu.Vec2) gpu.Vec4 {
		coord := uv
		dx := (uv[0] - 0.5) / iterations * density
		dy := (uv[1] - 0.5) / iterations * density
		illumination := float32(1)
		color := tex.Sample(uv)[3]
		for range iterations {
			coord[0] -= dx
			coord[1] -= dy
			color += tex.Sample(coord)[3] * illumination * weight
			illumination *= decay
		}
		return gpu.Vec4{color * exposure, 0, 0, 1}
	}
}

func blurKernel(in gpu.Inputs) gpu.FragmentFunc {
	const offset = 1.33333333
	tex := in.Sampler("uTexture")
	texel := in.Vec2("texelSize")
	return func(uv gpu.Vec2) gpu.Vec4 {
		l := gpu.Vec2{uv[0] - texel[0]*offset, uv[1] - texel[1]*offset}
		r := gpu.Vec2{uv[0] + texel[0]*offset, uv[1] + texel[1]*offset}
		sum := scale(tex.Sample(uv), 0.29411764)
		sum = add(sum, scale(tex.Sample(l), 0.35294117))
		sum = add(sum, scale(tex.Sample(r), 0.35294117))
		return sum
	}
}

func linearToGamma(v float32) float32 {
	v = max(v, 0)
	return max(1.055*float32(math.Pow(float64(v), 0.416666667))-0.055, 0)
}

func dither(x, y float32) float32 {
	fx := float32(math.Floor(float64(x)))
	fy := float32(math.Floor(float64(y)))
	return fract(float32(math.Sin(float64(fx*12.9898+fy*78.233))) * 43758.5453)
}

func displayKernel(in gpu.Inputs) gpu.FragmentFunc {
	tex := in.Sampler("uTexture")
	ditherScale := in.Vec2("ditherScale")
	texel := in.Vec2("texelSize")
	mode := RenderMode(in.Int("renderMode"))
	low, mid, high := in.Vec3("gradientLow"), in.Vec3("gradientMid"), in.Vec3("gradientHigh")
	shading := in.Keyword(KeywordShading)
	bloomOn := in.Keyword(KeywordBloom)
	sunraysOn := in.Keyword(KeywordSunrays)
	var bloomTex, sunraysTex gpu.Sampler
	if bloomOn {
		bloomTex = in.Sampler("uBloom")
	}
	if sunraysOn {
		sunraysTex = in.Sampler("uSunrays")
	}
	lightZ := float32(math.Hypot(float64(texel[0]), float64(texel[1])))

	ramp := func(t float32) gpu.Vec3 {
		t = clampf(t, 0, 1)
		if t < 0.5 {
			return mix3(low, mid, t*2)
		}
		return mix3(mid, high, (t-0.5)*2)
	}

	return func(uv gpu.Vec2) gpu.Vec4 {
		s := tex.Sample(uv)
		c := gpu.Vec3{s[0], s[1], s[2]}
		alpha := float32(-1)

		switch mode {
		case ModeGradient:
			c = ramp(length3(c[0], c[1], c[2]))
		case ModeBackground:
			c = gpu.Vec3{c[0]*0.5 + 0.5, c[1]*0.5 + 0.5, c[2]*0.5 + 0.5}
			alpha = 1
		case ModeDistortion:
			ox := (c[0] - 0.5) * 2 * 0.1
			oy := (c[1] - 0.5) * 2 * 0.1
			d := tex.Sample(gpu.Vec2{uv[0] + ox, uv[1] + oy})
			c = gpu.Vec3{d[0], d[1], d[2]}
		}

		if shading {
			n := around(uv, texel)
			lc, rc := tex.Sample(n.L), tex.Sample(n.R)
			tc, bc := tex.Sample(n.T), tex.Sample(n.B)
			dx := length3(rc[0], rc[1], rc[2]) - length3(lc[0], lc[1], lc[2])
			dy := length3(tc[0], tc[1], tc[2]) - length3(bc[0], bc[1], bc[2])
			nz := float32(1)
			if l := length3(dx, dy, lightZ); l > 0 {
				nz = lightZ / l
			}
			diffuse := clampf(nz+0.7, 0.7, 1)
			c = gpu.Vec3{c[0] * diffuse, c[1] * diffuse, c[2] * diffuse}
		}

		var bloom gpu.Vec3
		if bloomOn {
			b := bloomTex.Sample(uv)
			bloom = gpu.Vec3{b[0], b[1], b[2]}
		}
		if sunraysOn {
			k := sunraysTex.Sample(uv)[0]
			c = gpu.Vec3{c[0] * k, c[1] * k, c[2] * k}
			bloom = gpu.Vec3{bloom[0] * k, bloom[1] * k, bloom[2] * k}
		}
		if bloomOn {
			noise := dither(uv[0]*ditherScale[0], uv[1]*ditherScale[1])*2 - 1
			for i := range bloom {
				c[i] += linearToGamma(bloom[i] + noise/255)
			}
		}

		a := alpha
		if a < 0 {
			a = max(c[0], c[1], c[2])
		}
		return gpu.Vec4{c[0], c[1], c[2], a}
	}
}
