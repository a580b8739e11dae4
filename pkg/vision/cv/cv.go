// Package cv 提供 gocv 图像的读写、转换与裁剪工具
//
// 基本用法:
//
//	frame, err := cv.ReadImage("frame.jpg")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer frame.Close()
//
//	crop := cv.CropRect(frame, geom.NewRect(10, 10, 200, 150))
//	defer crop.Close()
package cv

import "errors"

// ErrCollaborator 分类器、特征提取、匹配等外部组件调用失败
//
// recognize 与 feature 包导出的同名变量指向同一个值，调用方用 errors.Is 判断即可。
var ErrCollaborator = errors.New("外部组件调用失败")
